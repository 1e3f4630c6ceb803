// Package channel contains the canonical domain model for PMS and channel
// manager integrations: connections, the entities synchronized from external
// systems (properties, room types, calendar days, reservations), and the
// Adapter port implemented once per integration target.
package channel
