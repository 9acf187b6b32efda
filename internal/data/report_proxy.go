package data

import (
	"encoding/json"
	"fmt"

	"stellar_server/internal/game"
	"stellar_server/pkg/db"
	"stellar_server/pkg/logger"
)

// ReportProxy :
// Intended as a wrapper to access the persisted battle and
// espionage reports.
type ReportProxy struct {
	dbase *db.DB
	proxy db.Proxy
	log   logger.Logger
}

// NewReportProxy :
// Creates a new proxy on the input database.
//
// Returns the created proxy.
func NewReportProxy(dbase *db.DB, log logger.Logger) ReportProxy {
	return ReportProxy{
		dbase: dbase,
		proxy: db.NewProxy(dbase),
		log:   log,
	}
}

// reportDTO :
// Facet of a report matching the payload expected by the
// save functions.
type reportDTO struct {
	ID             int                    `json:"id"`
	AttackerUserID int                    `json:"attacker_user_id"`
	DefenderUserID int                    `json:"defender_user_id"`
	Location       map[string]interface{} `json:"location"`
	Outcome        map[string]interface{} `json:"outcome,omitempty"`
	Snapshot       map[string]interface{} `json:"snapshot,omitempty"`
	CreatedAt      string                 `json:"created_at"`
}

// Convert :
// Implementation of the `db.Convertible` interface.
func (r reportDTO) Convert() interface{} {
	return r
}

// Save :
// Stores a battle or espionage report.
//
// Returns any error.
func (p ReportProxy) Save(report game.Report) error {
	dto := reportDTO{
		ID:             report.ID,
		AttackerUserID: report.AttackerUserID,
		DefenderUserID: report.DefenderUserID,
		Location: map[string]interface{}{
			"galaxy": report.Location.Galaxy,
			"system": report.Location.System,
			"planet": report.Location.Planet,
		},
		CreatedAt: game.FormatTime(report.CreatedAt),
	}

	script := "save_battle_report"
	if report.Kind == game.EspionageReportKind {
		script = "save_espionage_report"
		if snapshot, ok := report.Payload["snapshot"].(map[string]interface{}); ok {
			dto.Snapshot = snapshot
		}
	} else {
		if outcome, ok := report.Payload["outcome"].(map[string]interface{}); ok {
			dto.Outcome = outcome
		}
	}

	return p.proxy.InsertToDB(db.InsertReq{
		Script:     script,
		Args:       []interface{}{dto},
		SkipReturn: true,
	})
}

// FetchAll :
// Loads every persisted report of the input kind, used by
// the startup hydration.
//
// Returns the reports along with any error.
func (p ReportProxy) FetchAll(kind string) ([]game.Report, error) {
	table := "battle_reports"
	payloadColumn := "outcome"
	payloadKey := "outcome"
	if kind == game.EspionageReportKind {
		table = "espionage_reports"
		payloadColumn = "snapshot"
		payloadKey = "snapshot"
	}

	rows, err := p.dbase.DBQuery(
		fmt.Sprintf("select id, attacker_user_id, coalesce(defender_user_id, 0), location, %s, created_at from %s order by id", payloadColumn, table),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]game.Report, 0)
	for rows.Next() {
		report := game.Report{Kind: kind}
		var rawLocation, rawPayload []byte

		err = rows.Scan(&report.ID, &report.AttackerUserID, &report.DefenderUserID,
			&rawLocation, &rawPayload, &report.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to fetch report: %v", err)
		}

		var location map[string]interface{}
		if err = json.Unmarshal(rawLocation, &location); err == nil {
			report.Location = positionFromPayload(location)
		}

		payload := map[string]interface{}{}
		if err = json.Unmarshal(rawPayload, &payload); err != nil {
			payload = map[string]interface{}{}
		}
		report.Payload = map[string]interface{}{payloadKey: payload}

		out = append(out, report)
	}

	return out, nil
}

// positionFromPayload :
// Rebuilds a coordinate triplet from its JSON form.
func positionFromPayload(payload map[string]interface{}) game.Position {
	pos := game.Position{}
	if v, ok := payload["galaxy"].(float64); ok {
		pos.Galaxy = int(v)
	}
	if v, ok := payload["system"].(float64); ok {
		pos.System = int(v)
	}
	if v, ok := payload["planet"].(float64); ok {
		pos.Planet = int(v)
	}
	return pos
}
