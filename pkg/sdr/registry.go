package sdr

import (
	"fmt"
	"sort"
	"sync"
)

// Driver discovers and opens one family of hardware.
type Driver interface {
	// Enumerate lists devices matching args. Every result carries at least
	// a "driver" key.
	Enumerate(args Kwargs) ([]Kwargs, error)
	Make(args Kwargs) (Device, error)
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available under name. It is meant to be called
// from a driver package's init.
func Register(name string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; dup {
		panic("sdr: Register called twice for driver " + name)
	}
	drivers[name] = d
}

func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	ret := make([]string, 0, len(drivers))
	for name := range drivers {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

func lookup(name string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	return d, ok
}

// Enumerate asks every registered driver (or only the one named by the
// "driver" key) for its devices. Driver failures do not stop the scan;
// the first one is returned alongside whatever was found.
func Enumerate(args Kwargs) ([]Kwargs, error) {
	names := Drivers()
	if name, ok := args.Get("driver"); ok {
		if _, ok := lookup(name); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, name)
		}
		names = []string{name}
	}

	var (
		ret      []Kwargs
		firstErr error
	)
	for _, name := range names {
		d, _ := lookup(name)
		found, err := d.Enumerate(args)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		for _, kw := range found {
			kw = kw.Clone()
			if _, ok := kw.Get("driver"); !ok {
				kw.Set("driver", name)
			}
			ret = append(ret, kw)
		}
	}
	return ret, firstErr
}

// Make opens the device described by an argument string such as
// "driver=rtlsdr,serial=0001".
func Make(args string) (Device, error) {
	return MakeKwargs(ParseKwargs(args))
}

func MakeKwargs(args Kwargs) (Device, error) {
	if name, ok := args.Get("driver"); ok {
		d, ok := lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, name)
		}
		return d.Make(args)
	}

	found, _ := Enumerate(args)
	for _, kw := range found {
		if !kw.Matches(args) {
			continue
		}
		name, _ := kw.Get("driver")
		d, ok := lookup(name)
		if !ok {
			continue
		}
		kw = kw.Clone()
		for i := 0; i < args.Len(); i++ {
			kw.Set(args.Key(i), args.Value(i))
		}
		return d.Make(kw)
	}
	return nil, ErrNoDevice
}
