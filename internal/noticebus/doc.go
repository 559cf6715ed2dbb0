// Package noticebus is a small in-memory publish/subscribe bus used to turn
// the controller's bare Go callbacks (worker exceptions, timeouts,
// disconnects) into a subscribe-able event stream, without making any of
// that a required part of the request/response path. A Publisher wraps an
// event in an envelope with an id, name, and timestamp and hands it to a
// ChannelBus; a Processor drains the bus and fans each envelope out to the
// Handlers registered for its name.
package noticebus
