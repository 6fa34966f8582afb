package svc

import "errors"

var (
	errUnknownSVC           = errors.New("svc: unknown SVC number")
	errUnknownSystemRequest = errors.New("svc: unknown system request number")
	errNotSystemMap         = errors.New("svc: system request issued by a non-system map")
	errNoPartner            = errors.New("svc: switch_to_partner on an unpartnered thread")
	errUnhandledException   = errors.New("svc: unhandled exception class at SEL1")
	errFaultInSpecialMap    = errors.New("svc: demand fault in a special map")
	errNoRootTableProvider  = errors.New("svc: map switcher exposes no per-map root table")
)
