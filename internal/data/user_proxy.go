package data

import (
	"fmt"
	"time"

	"stellar_server/pkg/db"
	"stellar_server/pkg/logger"
)

// User :
// Credentials and metadata of a registered user. The
// password is only ever stored hashed.
type User struct {
	ID           int        `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	IsActive     bool       `json:"is_active"`
}

// ErrUserNotFound : Indicates that no user matches the
// requested identifier or name.
var ErrUserNotFound = fmt.Errorf("user not found")

// UserProxy :
// Intended as a wrapper to access the users table. The
// identifiers are allocated by the database so that they
// stay unique across restarts.
type UserProxy struct {
	dbase *db.DB
	proxy db.Proxy
	log   logger.Logger
}

// NewUserProxy :
// Creates a new proxy on the input database.
//
// Returns the created proxy.
func NewUserProxy(dbase *db.DB, log logger.Logger) UserProxy {
	return UserProxy{
		dbase: dbase,
		proxy: db.NewProxy(dbase),
		log:   log,
	}
}

// Create :
// Inserts a new user with the input credentials.
//
// Returns the created user along with any error, typically
// when the username or the email is already taken.
func (p UserProxy) Create(username string, email string, passwordHash string) (User, error) {
	user := User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
		IsActive:     true,
	}

	rows, err := p.dbase.DBQuery(
		"insert into users (username, email, password_hash, created_at, is_active) values ($1, $2, $3, $4, true) returning id",
		username, email, passwordHash, user.CreatedAt,
	)
	if err != nil {
		return User{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		return User{}, fmt.Errorf("unable to create user \"%s\"", username)
	}
	if err = rows.Scan(&user.ID); err != nil {
		return User{}, err
	}

	return user, nil
}

// FetchByUsername :
// Retrieves the user with the input name.
//
// Returns the user along with any error.
func (p UserProxy) FetchByUsername(username string) (User, error) {
	return p.fetchOne(db.Filter{Key: "username", Values: []interface{}{username}})
}

// FetchByID :
// Retrieves the user with the input identifier.
//
// Returns the user along with any error.
func (p UserProxy) FetchByID(id int) (User, error) {
	return p.fetchOne(db.Filter{Key: "id", Values: []interface{}{id}})
}

// UpdateLastLogin :
// Stamps the last login time of the input user.
//
// Returns any error.
func (p UserProxy) UpdateLastLogin(id int, at time.Time) error {
	_, err := p.dbase.DBExecute("update users set last_login = $1 where id = $2", at, id)
	return err
}

// FetchInactive :
// Retrieves the identifiers of the users whose last login
// (or creation, when they never logged in) is older than
// the input cutoff.
//
// Returns the identifiers along with any error.
func (p UserProxy) FetchInactive(cutoff time.Time) ([]int, error) {
	rows, err := p.dbase.DBQuery(
		"select id from users where coalesce(last_login, created_at) < $1",
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]int, 0)
	for rows.Next() {
		var id int
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}

	return out, nil
}

// Delete :
// Removes the input user. The planets and satellite rows
// follow through the foreign keys.
//
// Returns any error.
func (p UserProxy) Delete(id int) error {
	_, err := p.dbase.DBExecute("delete from users where id = $1", id)
	return err
}

// fetchOne :
// Retrieves a single user matching the input filter.
func (p UserProxy) fetchOne(filter db.Filter) (User, error) {
	res, err := p.proxy.FetchFromDB(db.QueryDesc{
		Props:   []string{"id", "username", "email", "password_hash", "created_at", "last_login", "is_active"},
		Table:   "users",
		Filters: []db.Filter{filter},
	})
	if err != nil {
		return User{}, err
	}
	defer res.Close()

	if res.Err != nil {
		return User{}, res.Err
	}
	if !res.Next() {
		return User{}, ErrUserNotFound
	}

	var user User
	var lastLogin *time.Time

	err = res.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt, &lastLogin, &user.IsActive)
	if err != nil {
		return User{}, err
	}
	user.LastLogin = lastLogin

	return user, nil
}
