// Package api exposes the record-management HTTP API.
//
// Every route under /api except login, logout and register requires a
// session. Sessions are presented as a bearer token or the
// cityrecords_session cookie. Authorization is decided per (kind,
// operation) by the rbac engine before any handler touches storage, so a
// denied write never reaches the database.
//
// The record routes follow one shape for every kind:
//
//	GET    /api/{kind}            list, or search with ?search= or ?q=
//	GET    /api/{kind}/search?q=  search
//	POST   /api/{kind}            create
//	GET    /api/{kind}/{id}       fetch
//	PUT    /api/{kind}/{id}       partial update (PATCH is accepted too)
//	DELETE /api/{kind}/{id}       delete, where the policy allows it
//
// Citizen-centric views live under /api/citizens/{citizenId}/... and the
// wanted list under /api/wanted.
package api
