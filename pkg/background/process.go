package background

import (
	"fmt"
	"stellar_server/pkg/logger"
	"sync"
	"time"
)

// OperationFunc :
// Defines an operation that can be associated to a process
// object. It should take no argument and return any error
// along with a status indicating whether it could be
// executed successfully.
type OperationFunc func() (bool, error)

// ErrAlreadyRunning : Indicates that this process is
// already running and cannot be started again.
var ErrAlreadyRunning = fmt.Errorf("unable to start already running process")

// ErrInvalidOperation : Indicates that the operation
// associated to this process is not valid.
var ErrInvalidOperation = fmt.Errorf("invalid operation to start process")

// Process :
// Defines a process that can be started with a certain
// repeatability and will spawn a go routine to do so.
// The function to execute is provided as input so that
// it is customizable. The user can also specify whether
// the function should be retried in case of a failure.
//
// The `interval` defines the duration between two calls
// of the function by this process.
//
// The `retryInterval` defines the interval to wait in
// case the `operation` fails. The default value is `1`
// second.
//
// The `operation` defines the function to be executed
// by the process.
//
// The `retry` defines whether the operation should be
// rescheduled immediately in case it fails.
//
// The `log` defines a way for this process to notify
// information and failures to the user.
//
// The `module` defines a string identifying the func
// attached to this process to make logs more relevant.
//
// The `lock` protects concurrent accesses to the
// internal state while the `termination` channel and
// the `waiter` handle the shutdown sequence.
type Process struct {
	interval      time.Duration
	retryInterval time.Duration
	operation     OperationFunc
	retry         bool
	log           logger.Logger
	module        string

	lock        sync.Mutex
	running     bool
	termination chan bool
	waiter      sync.WaitGroup
}

// NewProcess :
// Defines a new process object with the specified interval
// and logger.
//
// Returns the built-in object.
func NewProcess(interval time.Duration, log logger.Logger) *Process {
	return &Process{
		interval:      interval,
		retryInterval: 1 * time.Second,
		retry:         false,
		log:           log,
		module:        "process",

		termination: make(chan bool, 1),
	}
}

// WithModule :
// Assigns a new string as the module name for this process.
//
// Returns this process to allow chain calling.
func (p *Process) WithModule(module string) *Process {
	func() {
		p.lock.Lock()
		defer p.lock.Unlock()

		p.module = module
	}()

	return p
}

// WithRetry :
// Defines that this process should try to schedule the
// operation function again if it fails until it succeeds.
//
// Returns this process to allow chain calling.
func (p *Process) WithRetry() *Process {
	func() {
		p.lock.Lock()
		defer p.lock.Unlock()

		p.retry = true
	}()

	return p
}

// WithRetryInterval :
// Defines a new retry interval for the time to wait when
// the main operation fails to execute.
//
// Returns this process to allow chain calling.
func (p *Process) WithRetryInterval(interval time.Duration) *Process {
	func() {
		p.lock.Lock()
		defer p.lock.Unlock()

		p.retryInterval = interval
	}()

	return p
}

// WithOperation :
// Defines the core processing function to execute at each
// interval.
//
// Returns this process to allow chain calling.
func (p *Process) WithOperation(operation OperationFunc) *Process {
	func() {
		p.lock.Lock()
		defer p.lock.Unlock()

		p.operation = operation
	}()

	return p
}

// Stop :
// Used to indicate the termination of the active loop for
// this process. It prevents any further execution of the
// main operation callback and waits for the loop to finish.
func (p *Process) Stop() {
	p.lock.Lock()

	if !p.running {
		p.lock.Unlock()
		return
	}

	p.running = false
	p.termination <- true
	p.lock.Unlock()

	p.waiter.Wait()
}

// Start :
// Used to start the process associated with this object.
// The operation is checked for validity, otherwise an
// error is returned.
//
// Returns any error.
func (p *Process) Start() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.running {
		return ErrAlreadyRunning
	}
	if p.operation == nil {
		return ErrInvalidOperation
	}

	p.running = true
	p.waiter.Add(1)

	go p.activeLoop()

	return nil
}

// activeLoop :
// Main processing loop for this object. It will wait for
// the required period of time and execute the attached
// operation until a termination is requested.
func (p *Process) activeLoop() {
	ticker := time.NewTicker(p.interval)

	defer func() {
		err := recover()
		if err != nil {
			p.log.Trace(logger.Critical, p.module, fmt.Sprintf("Recovered from error in process (err: %v)", err))
		}

		ticker.Stop()

		p.lock.Lock()
		p.running = false
		p.lock.Unlock()

		p.waiter.Done()
	}()

	for {
		select {
		case <-p.termination:
			return
		case <-ticker.C:
			err := p.execute()
			if err != nil {
				p.log.Trace(logger.Error, p.module, fmt.Sprintf("Caught error while executing process (err: %v)", err))
			}
		}
	}
}

// execute :
// Wrapper function allowing to execute the main operation
// bound to this process. The operation will be retried as
// long as it does not succeed based on the internal flag.
//
// Returns any error.
func (p *Process) execute() error {
	success := false
	var err error

	for !success {
		p.log.Trace(logger.Verbose, p.module, "Executing process")

		success, err = p.operation()

		if err != nil {
			p.log.Trace(logger.Error, p.module, fmt.Sprintf("Caught error while executing process (err: %v)", err))
		}

		if !p.retry {
			break
		}

		if !success {
			var wait time.Duration
			func() {
				p.lock.Lock()
				defer p.lock.Unlock()

				wait = p.retryInterval
			}()

			p.log.Trace(logger.Verbose, p.module, fmt.Sprintf("Failed to execute process, retrying in %v", wait))
			time.Sleep(wait)
		}
	}

	return err
}
