/*
Package metrics exports agent-chat's Prometheus series.

Collector registers every series through promauto under one namespace:
operator API requests, provider completion calls, model catalog lookups
by outcome, conversation turns and run state transitions, operator
injections and credential store operations. A nil *Collector is a valid
no-op recorder.
*/
package metrics
