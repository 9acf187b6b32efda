package game

import (
	"sync"
	"time"
)

// Report kinds.
const (
	BattleReportKind    = "battle"
	EspionageReportKind = "espionage"
)

// Report :
// Outcome of a battle or of an espionage mission, visible
// to both participants.
type Report struct {
	ID             int                    `json:"id"`
	Kind           string                 `json:"kind"`
	AttackerUserID int                    `json:"attacker_user_id"`
	DefenderUserID int                    `json:"defender_user_id,omitempty"`
	Location       Position               `json:"location"`
	Payload        map[string]interface{} `json:"payload"`
	CreatedAt      time.Time              `json:"created_at"`
}

// ReportStore :
// In-memory store of the battle and espionage reports,
// with separate identifier sequences per kind so that the
// route layer can address them independently.
type ReportStore struct {
	lock sync.Mutex

	battles         []Report
	nextBattleID    int
	espionages      []Report
	nextEspionageID int
}

// NewReportStore :
// Creates an empty report store.
func NewReportStore() *ReportStore {
	return &ReportStore{
		battles:         make([]Report, 0),
		nextBattleID:    1,
		espionages:      make([]Report, 0),
		nextEspionageID: 1,
	}
}

// Add :
// Stores a new report, assigning its identifier.
//
// Returns the stored report.
func (rs *ReportStore) Add(report Report) Report {
	rs.lock.Lock()
	defer rs.lock.Unlock()

	report.CreatedAt = Now()

	switch report.Kind {
	case EspionageReportKind:
		report.ID = rs.nextEspionageID
		rs.nextEspionageID++
		rs.espionages = append(rs.espionages, report)
	default:
		report.Kind = BattleReportKind
		report.ID = rs.nextBattleID
		rs.nextBattleID++
		rs.battles = append(rs.battles, report)
	}

	return report
}

// Restore :
// Stores an already identified report, typically when
// reloading persisted rows during startup.
func (rs *ReportStore) Restore(report Report) {
	rs.lock.Lock()
	defer rs.lock.Unlock()

	switch report.Kind {
	case EspionageReportKind:
		rs.espionages = append(rs.espionages, report)
		if report.ID >= rs.nextEspionageID {
			rs.nextEspionageID = report.ID + 1
		}
	default:
		rs.battles = append(rs.battles, report)
		if report.ID >= rs.nextBattleID {
			rs.nextBattleID = report.ID + 1
		}
	}
}

// List :
// Returns a page of the reports of the input kind visible
// to the user, newest first. A report is visible to its
// attacker and to its defender.
func (rs *ReportStore) List(kind string, userID int, limit int, offset int) []Report {
	rs.lock.Lock()
	defer rs.lock.Unlock()

	source := rs.battles
	if kind == EspionageReportKind {
		source = rs.espionages
	}

	relevant := make([]Report, 0)
	for i := len(source) - 1; i >= 0; i-- {
		report := source[i]
		if report.AttackerUserID == userID || report.DefenderUserID == userID {
			relevant = append(relevant, report)
		}
	}

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(relevant) {
		return []Report{}
	}
	end := offset + limit
	if end > len(relevant) {
		end = len(relevant)
	}

	return relevant[offset:end]
}

// Get :
// Returns the report of the input kind with the input
// identifier provided the user took part in it.
//
// Returns `nil` when not found or not visible.
func (rs *ReportStore) Get(kind string, userID int, id int) *Report {
	rs.lock.Lock()
	defer rs.lock.Unlock()

	source := rs.battles
	if kind == EspionageReportKind {
		source = rs.espionages
	}

	for _, report := range source {
		if report.ID == id && (report.AttackerUserID == userID || report.DefenderUserID == userID) {
			out := report
			return &out
		}
	}

	return nil
}
