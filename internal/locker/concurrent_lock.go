package locker

import (
	"fmt"
	"stellar_server/pkg/logger"
	"sync"

	"github.com/spf13/viper"
)

// module :
// Identifier used by this package when producing logs.
const module = "locker"

// ConcurrentLocker :
// Used to provide a concurrent lock mechanism allowing to
// share the access to named resources and allow multiple
// users to wait on a shared resource while still providing
// individual locks.
// Typically this lock is used when persisting the state of
// a single planet: a single process should perform the
// write at any given moment while other writers for that
// same planet wait, without locking the whole world. We
// don't want to create a lock per row either, so a finite
// pool of locks (configurable) is distributed on demand
// and associated to the name of the resource they guard.
// Once all of them are used a call to `Acquire` becomes
// blocking until one is released.
//
// The `locker` is the top level mutex that allows to use
// this object concurrently without losing thread safety.
//
// The `locks` defines the pool of locks that can be used
// to protect the access to a particular resource.
//
// The `availableLocks` is used internally to determine
// which of the locks are available and which are already
// distributed to clients.
//
// The `registered` maps resource names to the lock they
// are currently assigned. Entries are erased when the
// last user releases the lock.
//
// The `cout` allows to notify errors and information about
// the process going on internally within this element.
type ConcurrentLocker struct {
	locker         sync.Mutex
	locks          []*Lock
	availableLocks chan int
	registered     map[string]int
	cout           logger.Logger
}

// Lock :
// Allows to protect the access to a single resource by
// providing a way for concurrent clients to wait on it.
//
// The `id` defines the index of this lock in the internal
// pool of the `ConcurrentLocker`. Its value is negative in
// case the lock is not in use at the moment.
//
// The `res` defines the resource currently assigned to
// this lock.
//
// The `use` defines how many concurrent users are currently
// relying on this lock. It determines whether the lock can
// be made available again to other resources.
//
// The `waiter` is used by the `Lock` method to make sure
// that a single client is using the resource secured by
// this lock at any time.
type Lock struct {
	id     int
	res    string
	use    int
	waiter chan struct{}
}

// configuration :
// Regroups the variables that can be used to customize the
// number of locks served in parallel by an instance of the
// `ConcurrentLocker` object.
//
// The `LockCount` defines the number of locks that can be
// distributed amongst clients before a call to the `Acquire`
// method becomes blocking.
// The default value is `10`.
type configuration struct {
	LockCount int
}

// parseConfiguration :
// Used to parse the configuration file and environment
// variables provided when executing this server to get the
// values of the locker properties.
//
// Returns the parsed configuration where all non-set
// properties have their default values.
func parseConfiguration() configuration {
	config := configuration{
		LockCount: 10,
	}

	if viper.IsSet("Concurrent.LockCount") {
		config.LockCount = viper.GetInt("Concurrent.LockCount")
	}

	return config
}

// NewConcurrentLocker :
// Performs the creation of a new `ConcurrentLocker` with
// configuration values retrieved from the environment
// variables and conf file provided to the server.
//
// The `log` will be assigned as the internal logging mean
// for this locker.
//
// Returns the created concurrent locker.
func NewConcurrentLocker(log logger.Logger) *ConcurrentLocker {
	config := parseConfiguration()

	allLocks := make([]*Lock, config.LockCount)
	ids := make(chan int, config.LockCount)

	for id := range allLocks {
		allLocks[id] = &Lock{
			id:     -1,
			res:    "",
			use:    0,
			waiter: make(chan struct{}, 1),
		}
		allLocks[id].waiter <- struct{}{}

		// Register this index as free.
		ids <- id
	}

	cl := ConcurrentLocker{
		locks:          allLocks,
		availableLocks: ids,
		registered:     make(map[string]int),
		cout:           log,
	}

	return &cl
}

// Acquire :
// Used to try to acquire a lock for the specified resource.
// If a lock already exists for the resource its use count
// is increased and it is returned, so that other clients
// coming after this call with a similar resource receive a
// copy of the lock. Otherwise a free lock from the pool is
// registered for the resource. In case no more locks are
// available this call blocks until one is released.
//
// The `resource` defines the name of the resource for which
// a lock should be acquired.
//
// Returns the lock acquired for this resource.
func (cl *ConcurrentLocker) Acquire(resource string) *Lock {
	var l *Lock

	func() {
		cl.locker.Lock()
		defer cl.locker.Unlock()

		id, ok := cl.registered[resource]
		if ok {
			l = cl.locks[id]
			l.use++

			cl.cout.Trace(logger.Debug, module, fmt.Sprintf("Adding user to resource \"%s\" (id: %d, usage: %d, available: %d)", l.res, l.id, l.use, len(cl.availableLocks)))
		}
	}()

	if l != nil {
		return l
	}

	// No lock exists yet for this resource: wait on the
	// internal channel until one becomes available.
	id := <-cl.availableLocks

	func() {
		cl.locker.Lock()
		defer cl.locker.Unlock()

		cl.registered[resource] = id

		l = cl.locks[id]
		l.id = id
		l.res = resource
		l.use++

		cl.cout.Trace(logger.Debug, module, fmt.Sprintf("Creating lock on \"%s\" (id: %d, available: %d)", l.res, l.id, len(cl.availableLocks)))
	}()

	return l
}

// Release :
// Used to perform the release of the lock provided in input
// and handle the necessary verifications to see whether it
// can be put back in the list of available locks. This can
// only happen if no other user is using this lock.
//
// The `lock` defines the lock to release. If this value is
// `nil` nothing happens.
func (cl *ConcurrentLocker) Release(lock *Lock) {
	if lock == nil {
		return
	}

	cl.locker.Lock()
	defer cl.locker.Unlock()

	lock.use--

	// If some clients are still using it, do not put it
	// back in the list of available locks.
	if lock.use > 0 {
		return
	}

	cl.cout.Trace(logger.Debug, module, fmt.Sprintf("Releasing lock on \"%s\" at index %d (available: %d)", lock.res, lock.id, len(cl.availableLocks)))

	delete(cl.registered, lock.res)
	cl.availableLocks <- lock.id

	lock.id = -1
	lock.res = ""
}

// Lock :
// Used to wait to obtain the lock so as to make sure that
// the client process is the only one able to access the
// resource secured by this object. The operation blocks
// until the current user has released the resource.
func (l *Lock) Lock() {
	<-l.waiter
}

// TryLock :
// Attempts to obtain the lock without blocking. This is
// useful for periodic jobs that should rather skip a cycle
// than pile up behind a slow writer.
//
// Returns `true` if the lock was obtained.
func (l *Lock) TryLock() bool {
	select {
	case <-l.waiter:
		return true
	default:
		return false
	}
}

// Release :
// Used to release this lock object so that other clients
// can access the resource protected by it.
//
// Returns an error in case the lock cannot be released,
// typically when the `Release` method has already been
// called or no `Lock` call has been made before.
func (l *Lock) Release() error {
	if len(l.waiter) > 0 {
		return fmt.Errorf("cannot release lock on resource, seems already released")
	}

	l.waiter <- struct{}{}

	return nil
}
