package main

import "time"

// StatePublisher announces state changes. Implementations must not block and
// must not retry synchronously: a failed publish is logged and counted, and
// the local state stays as it is.
type StatePublisher interface {
	PublishVolume(step int, db float64, at time.Time)
	PublishSource(src Source, at time.Time)
}

// multiPublisher fans out to several publishers (MQTT, state websocket).
type multiPublisher []StatePublisher

func (m multiPublisher) PublishVolume(step int, db float64, at time.Time) {
	for _, p := range m {
		p.PublishVolume(step, db, at)
	}
}

func (m multiPublisher) PublishSource(src Source, at time.Time) {
	for _, p := range m {
		p.PublishSource(src, at)
	}
}
