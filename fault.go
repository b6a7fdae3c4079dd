package sqlreplay

import "sync"

// faultState is the channel-wide fault flag shared by Host and Client. Fault
// notifications land until teardown unsubscribes, and only the first teardown
// gets to act on what was observed.
type faultState struct {
	mu           sync.Mutex
	err          error
	unsubscribed bool
}

func (me *faultState) notify(err error) {
	me.mu.Lock()
	defer me.mu.Unlock()
	if me.unsubscribed || me.err != nil {
		return
	}
	log.Errorf("channel faulted: %v", err)
	me.err = err
}

func (me *faultState) faulted() error {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.err
}

// unsubscribe stops further notifications. It returns the fault observed up to
// now, and whether this was the first call.
func (me *faultState) unsubscribe() (err error, first bool) {
	me.mu.Lock()
	defer me.mu.Unlock()
	first = !me.unsubscribed
	me.unsubscribed = true
	err = me.err
	return
}
