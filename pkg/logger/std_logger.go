package logger

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// configuration :
// Provides a way to configure the way logs are displayed. The
// logger is initialized with sane defaults but the properties
// are fetched from the configuration file when available.
//
// The `AppName` describes a string for the name of the app
// using the logger.
// The default value is "Unknown app".
//
// The `Environment` allows to specify which configuration is
// used by the application executing the logger. Typical values
// include `production`, `development`, etc.
// The default value is "development".
//
// The `Level` is a string representing the minimum level of a
// log message in order for it to be displayed. It allows to
// filter debug messages from production environments so that
// important messages keep their visibility.
// The default value is "info".
//
// The `Buffer` allows to specify the size of the buffer used
// to handle log messages. The logger does not directly output
// messages to the standard output but stores them in a channel
// with a predefined size so that bursts of messages can be
// absorbed without blocking the producers.
// The default value is 500.
type configuration struct {
	AppName     string
	Environment string
	Level       string
	Buffer      int
}

// traceMessage :
// Describes a message to be enqueued by the logger. It holds
// all the needed information to be displayed such as severity,
// the module producing it and its content.
type traceMessage struct {
	level   Severity
	module  string
	content string
}

// StdLogger :
// Describes the logger structure used to perform logging to
// the standard output. Incoming trace messages are placed in
// an internal buffer so that producers are not blocked while
// the underlying display system processes them. A dedicated
// routine consumes the buffer until the `Release` method is
// called, at which point the remaining messages are flushed.
//
// The `config` holds the settings to apply to input messages
// before displaying them.
//
// The `instanceID` represents the name of the instance of the
// application running the logger. It is updated each time the
// application restarts which allows to distinguish runs of a
// single application on a given machine.
//
// The `logChannel` receives the trace messages from modules
// before sending them to the logging device.
//
// The `endChannel` allows to terminate the active loop which
// transmits messages from the `logChannel` to the device.
//
// The `closed` value indicates whether the logger has been
// terminated. It is protected by the `locker` and ensures
// that messages posted up until the `Release` call are still
// displayed.
//
// The `waiter` allows to wait for the proper termination of
// the logging routine.
type StdLogger struct {
	config     configuration
	instanceID string
	threshold  Severity
	logChannel chan traceMessage
	endChannel chan bool
	closed     bool
	locker     sync.Mutex
	waiter     sync.WaitGroup
}

// parseConfiguration :
// Used to retrieve the parameters to apply to the logger from
// the configuration file. A default configuration is provided
// to work in most cases.
func parseConfiguration() configuration {
	config := configuration{
		"Unknown app",
		"development",
		"info",
		500,
	}

	if viper.IsSet("Logger.Name") {
		config.AppName = viper.GetString("Logger.Name")
	}
	if viper.IsSet("Logger.Environment") {
		config.Environment = viper.GetString("Logger.Environment")
	}
	if viper.IsSet("Logger.Level") {
		config.Level = viper.GetString("Logger.Level")
	}
	if viper.IsSet("Logger.Buffer") {
		config.Buffer = viper.GetInt("Logger.Buffer")
	}

	return config
}

// NewStdLogger :
// Used to create a new logger with the specified instance
// name. The created logger will parse the configuration file
// provided by the env and adapt its configuration right away.
//
// The `instanceID` string might be empty in which case a
// "local" identifier is used instead.
//
// The return value represents the produced logger.
func NewStdLogger(instanceID string) *StdLogger {
	config := parseConfiguration()

	log := StdLogger{
		config:     config,
		instanceID: instanceID,
		threshold:  SeverityFromString(config.Level),
		logChannel: make(chan traceMessage, config.Buffer),
		endChannel: make(chan bool),
	}

	if len(log.instanceID) == 0 {
		log.instanceID = "local"
	}

	// Start logging.
	log.waiter.Add(1)
	go log.performLogging()

	return &log
}

// Release :
// Used to perform the stopping of the active loop meant to
// handle logging to the underlying device. It will block
// until the last posted logs have been dumped.
func (log *StdLogger) Release() {
	// Request the termination of the active loop.
	log.endChannel <- false

	// Close the log channel.
	log.locker.Lock()
	log.closed = true
	close(log.logChannel)
	log.locker.Unlock()

	// Wait for the routine termination.
	log.waiter.Wait()
}

// Trace :
// Used to perform the log of the input message with the
// specified level for the specified module. The message is
// not directly transmitted to the logging device but placed
// in the internal buffer so that it can be processed by the
// active logger loop. This function does not block unless
// the internal buffer is full.
func (log *StdLogger) Trace(level Severity, module string, message string) {
	// Filter messages below the configured threshold.
	if level < log.threshold {
		return
	}

	trace := traceMessage{
		level,
		module,
		message,
	}

	// Enqueue the trace to the internal channel if it is
	// not closed yet.
	log.locker.Lock()
	defer log.locker.Unlock()
	if !log.closed {
		log.logChannel <- trace
	}
}

// performLogging :
// Used to perform logging. This method is meant to be launched
// as a go routine and will regularly poll the internal trace
// channel to perform logging.
func (log *StdLogger) performLogging() {
	running := true

	for running {
		select {
		case running = <-log.endChannel:
			// The end channel has been activated, terminate
			// the logging process.
		case trace := <-log.logChannel:
			log.performSingleLog(trace)
		}
	}

	// Flush the remaining messages of the log channel.
	for trace := range log.logChannel {
		log.performSingleLog(trace)
	}

	log.waiter.Done()
}

// performSingleLog :
// Used to perform a single log for the input trace. This
// method is called from the active logging loop and formats
// the message with some context about the instance producing
// it before dumping it to the standard output.
func (log *StdLogger) performSingleLog(trace traceMessage) {
	out := FormatWithBrackets(log.config.AppName, Magenta)
	out += " " + FormatWithBrackets(log.instanceID, Magenta)
	out += " " + FormatWithNoBrackets(time.Now().Format("2006-01-02 15:04:05"), Magenta)
	out += " " + trace.level.String()
	if len(trace.module) > 0 {
		out += " " + FormatWithBrackets(trace.module, Cyan)
	}

	out += " " + trace.content

	fmt.Println(out)
}
