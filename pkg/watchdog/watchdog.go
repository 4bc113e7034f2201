// Package watchdog stops the robot when its operator goes quiet.  A
// Dog must be fed at least once per food duration; if it is not, it
// bites, and the hand it bites is usually one that parks the wheels.
package watchdog

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option changes features on the dog.
type Option func(*Dog)

// The DogHandFunc is the hand that the dog bites if it doesn't get
// fed frequently enough.
type DogHandFunc func()

// Dog handles the time since its last fed, and the callback that will
// happen if the Dog decides to bite people.
type Dog struct {
	l hclog.Logger

	name string

	mu      sync.Mutex
	t       *time.Timer
	stopped bool
	bites   atomic.Int64

	biteFunc     DogHandFunc
	foodDuration time.Duration
}

// New gets you a new watchdog.  The dog starts hungry: if nothing
// feeds it within the food duration it bites.
func New(opts ...Option) *Dog {
	d := &Dog{
		name: "spot",
		l:    hclog.NewNullLogger(),

		biteFunc:     func() {},
		foodDuration: time.Second * 10,
	}
	for _, o := range opts {
		o(d)
	}
	d.mu.Lock()
	d.t = time.AfterFunc(d.foodDuration, d.Bite)
	d.mu.Unlock()
	return d
}

// Bite calls the BiteFunction.  The dog will not bite again until it
// has been fed and then starved once more.
func (d *Dog) Bite() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.t.Stop()
	d.mu.Unlock()

	d.bites.Add(1)
	d.l.Warn("Watchdog expired", "dog", d.name, "after", d.foodDuration)
	d.biteFunc()
}

// Feed convinces the dog not to bite for the values specified during
// initialization, by default another 10 seconds.
func (d *Dog) Feed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.t.Reset(d.foodDuration)
}

// Stop puts the dog to sleep for good.  Neither Feed nor the timer
// will wake it again.
func (d *Dog) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.t.Stop()
}

// Bites returns how many times the dog has bitten.
func (d *Dog) Bites() int { return int(d.bites.Load()) }

// WithHandFunction sets up the hand that the dog will bite.  Not
// setting this kind of defeats the point of having a watchdog.
func WithHandFunction(f DogHandFunc) Option { return func(d *Dog) { d.biteFunc = f } }

// WithFoodDuration sets up how long the dog stays fed for when you
// call Feed().
func WithFoodDuration(fd time.Duration) Option { return func(d *Dog) { d.foodDuration = fd } }

// WithName names the dog.  If you don't specify this, you'll likely
// get bit by a dog named spot.
func WithName(n string) Option { return func(d *Dog) { d.name = n } }

// WithLogger provides a logging instance to the watchdog, since you
// probably do not want a silent dog wandering around biting
// goroutines.
func WithLogger(l hclog.Logger) Option { return func(d *Dog) { d.l = l.Named("watchdog") } }
