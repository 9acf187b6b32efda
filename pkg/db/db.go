package db

import (
	"fmt"
	"stellar_server/pkg/background"
	"stellar_server/pkg/logger"
	"sync"
	"time"

	"github.com/jackc/pgx"
	"github.com/spf13/viper"
)

// configuration :
// Defines the possible options to define the way this DB
// object should try to connect to the underlying database.
//
// The `host` references the address at which the database
// is hosted.
// The default value is "localhost".
//
// The `port` describes the exposed port to connect to the
// database.
// The default value is 5432.
//
// The `name` defines the name of the database. This value
// should be set as we cannot assume anything regarding its
// value in general.
//
// The `user` defines the role that this object should use
// to connect to the DB.
//
// The `password` defines the password to use to access to
// the DB given the specified username.
//
// The `timeout` separates two successive connection attempts
// to the DB, expressed in seconds.
// The default value is `5` seconds.
//
// The `connectionsPool` defines the number of concurrent
// connections that can be issued on the underlying DB.
// The default value is `5`.
//
// The `enabled` allows to run the server without any DB at
// all: the simulation stays fully in memory and persistence
// requests are dropped. This is meant for development and
// for tests.
// The default value is `true`.
type configuration struct {
	host            string
	port            int
	name            string
	user            string
	password        string
	timeout         int
	connectionsPool int
	enabled         bool
}

// DB :
// Describes a database object providing a wrapper on the pgx
// handler. Compared to the base wrapper it handles a mechanism
// to try connecting to the DB until it comes online, through a
// repeatable background process. It also retrieves the options
// to use to connect to the DB from the configuration file.
//
// The `pool` holds a reference on the database object. This
// value is not `nil` whenever a connection to the DB has been
// successfully established.
//
// The `lock` protects the `pool` value from concurrent
// accesses, typically when the connection to the DB is lost
// and we try to establish it again.
//
// The `logger` allows to notify information and errors.
//
// The `config` describes the connection properties parsed
// upon building the object.
//
// The `monitor` is the background process maintaining the
// connection healthy after the initial attempt.
type DB struct {
	pool    *pgx.ConnPool
	lock    sync.Mutex
	logger  logger.Logger
	config  configuration
	monitor *background.Process
}

// parseConfiguration :
// Attempts to parse the configuration provided to this app to
// extract connection parameters to use for the DB. It relies
// on default values in case some options are not set and
// panics if mandatory values cannot be found.
//
// Returns the built-in configuration object.
func parseConfiguration() configuration {
	config := configuration{
		"localhost",
		5432,
		"",
		"",
		"",
		5,
		5,
		true,
	}

	if viper.IsSet("Database.Host") {
		config.host = viper.GetString("Database.Host")
	}
	if viper.IsSet("Database.Port") {
		config.port = viper.GetInt("Database.Port")
	}
	if viper.IsSet("Database.Name") {
		config.name = viper.GetString("Database.Name")
	}
	if viper.IsSet("Database.User") {
		config.user = viper.GetString("Database.User")
	}
	if viper.IsSet("Database.Password") {
		config.password = viper.GetString("Database.Password")
	}
	if viper.IsSet("Database.Timeout") {
		config.timeout = viper.GetInt("Database.Timeout")
	}
	if viper.IsSet("Database.ConnectionsPool") {
		config.connectionsPool = viper.GetInt("Database.ConnectionsPool")
	}
	if viper.IsSet("Database.Enabled") {
		config.enabled = viper.GetBool("Database.Enabled")
	}

	if config.enabled {
		if len(config.name) == 0 {
			panic(fmt.Errorf("invalid DB name fetched from configuration \"%s\"", config.name))
		}
		if len(config.user) == 0 {
			panic(fmt.Errorf("invalid DB user fetched from configuration \"%s\"", config.user))
		}
		if len(config.password) == 0 {
			panic(fmt.Errorf("invalid DB password fetched from configuration \"%s\"", config.password))
		}
		if config.port < 0 || config.port >= 1<<16 {
			panic(fmt.Errorf("invalid DB port fetched from configuration %d", config.port))
		}
		if config.connectionsPool <= 0 {
			panic(fmt.Errorf("invalid DB connections pool fetched from configuration %d", config.connectionsPool))
		}
	}

	return config
}

// NewPool :
// Performs the creation of a new database object. The created
// object will try to connect to the database described in the
// configuration file until a connection is established. Until
// then, calls to `DBExecute` or `DBQuery` will fail.
// In case the database is disabled through the configuration
// the returned object never connects and all the requests are
// answered with an error.
//
// The `logger` allows to specify the logging device to use.
//
// Returns the created database object.
func NewPool(log logger.Logger) *DB {
	config := parseConfiguration()

	dbase := DB{
		logger: log,
		config: config,
	}

	if !config.enabled {
		log.Trace(logger.Notice, "db", "Database persistence is disabled, running in memory only")
		return &dbase
	}

	// Try to connect to the DB right away and keep the
	// connection healthy afterwards through a repeatable
	// background process.
	dbase.createPoolAttempt()

	dbase.monitor = background.NewProcess(time.Second*time.Duration(config.timeout), log).
		WithModule("db").
		WithOperation(func() (bool, error) {
			dbase.Healthcheck()
			return true, nil
		})

	if err := dbase.monitor.Start(); err != nil {
		log.Trace(logger.Error, "db", fmt.Sprintf("Could not start DB healthcheck (err: %v)", err))
	}

	return &dbase
}

// Enabled :
// Indicates whether this object is configured to reach an
// actual database.
func (dbase *DB) Enabled() bool {
	return dbase.config.enabled
}

// Stop :
// Terminates the background healthcheck associated to this
// database object.
func (dbase *DB) Stop() {
	if dbase.monitor != nil {
		dbase.monitor.Stop()
	}
}

// createPoolAttempt :
// Used to try to connect to the database described in the
// configuration file. The connection is assigned to the
// internal attribute only if it has succeeded.
//
// Returns `true` if the attempt succeeded.
func (dbase *DB) createPoolAttempt() bool {
	config := dbase.config
	dbase.logger.Trace(logger.Info, "db", fmt.Sprintf("Attempting to connect to \"%s\" (user: \"%s\", host: \"%s:%d\")", config.name, config.user, config.host, config.port))

	pool, err := pgx.NewConnPool(pgx.ConnPoolConfig{
		ConnConfig: pgx.ConnConfig{
			Host:     config.host,
			Database: config.name,
			Port:     uint16(config.port),
			User:     config.user,
			Password: config.password,
		},
		MaxConnections: config.connectionsPool,
		AcquireTimeout: 0,
	})

	if err != nil {
		dbase.logger.Trace(logger.Warning, "db", fmt.Sprintf("Failed to connect to DB \"%s\" (err: %v)", config.name, err))
		return false
	}

	dbase.logger.Trace(logger.Info, "db", fmt.Sprintf("Connection to DB \"%s\" with username \"%s\" succeeded", config.name, config.user))

	dbase.lock.Lock()
	func() {
		defer dbase.lock.Unlock()
		dbase.pool = pool
	}()

	return true
}

// Healthcheck :
// Used to check the health of the connection to the DB. In
// case the connection is found not to be healthy, a new
// attempt is scheduled immediately.
// Note that an idle but broken connection might not be seen
// by this check. When a user actually performs a request the
// failure will be detected and the pool flagged as invalid,
// so the next healthcheck schedules a new attempt.
func (dbase *DB) Healthcheck() {
	if !dbase.config.enabled {
		return
	}

	dbIsNil := false
	var stat pgx.ConnPoolStat

	dbase.lock.Lock()
	func() {
		defer dbase.lock.Unlock()

		dbIsNil = (dbase.pool == nil)
		if !dbIsNil {
			stat = dbase.pool.Stat()
		}
	}()

	if dbIsNil || stat.CurrentConnections == 0 {
		dbase.createPoolAttempt()
	}
}

// Healthy :
// Returns whether a connection to the DB is currently
// established.
func (dbase *DB) Healthy() bool {
	dbase.lock.Lock()
	defer dbase.lock.Unlock()

	if dbase.pool == nil {
		return false
	}

	return dbase.pool.Stat().CurrentConnections > 0
}

// DBExecute :
// Attempts to perform the input query with the specified
// arguments on the internal database connection. If the
// connection has not yet been established with the DB an
// error is returned.
//
// The `query` represents the request to execute.
//
// The `args` are arguments to pass to the query.
//
// Returns the result of the query along with any errors.
func (dbase *DB) DBExecute(query string, args ...interface{}) (*pgx.CommandTag, error) {
	dbase.lock.Lock()
	if dbase.pool == nil {
		dbase.lock.Unlock()
		return nil, fmt.Errorf("cannot execute query on DB \"%s\" (err: connection is invalid)", dbase.config.name)
	}

	var tag pgx.CommandTag
	var err error

	func() {
		defer dbase.lock.Unlock()
		tag, err = dbase.pool.Exec(query, args...)
	}()

	return &tag, err
}

// DBQuery :
// Attempts to execute the input query with the specified
// arguments on the internal database connection. This method
// is very similar to `DBExecute` but fetches information from
// the DB rather than modifying it.
//
// The `query` represents the request to execute.
//
// The `args` are arguments to pass to the query.
//
// Returns the result of the query along with any errors.
func (dbase *DB) DBQuery(query string, args ...interface{}) (*pgx.Rows, error) {
	dbase.lock.Lock()
	if dbase.pool == nil {
		dbase.lock.Unlock()
		return nil, fmt.Errorf("cannot execute query on DB \"%s\" (err: connection is invalid)", dbase.config.name)
	}

	var r *pgx.Rows
	var err error

	func() {
		defer dbase.lock.Unlock()
		r, err = dbase.pool.Query(query, args...)
	}()

	return r, err
}
