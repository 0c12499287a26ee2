// Package logger records structured events as newline delimited JSON and
// summarizes the resulting logs.
//
// Each entry is a google.protobuf.Struct holding at least the fields
// timestamp_micros, session_id and event.
package logger
