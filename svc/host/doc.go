// Package host describes the environment capabilities the torrentbridge
// components run against.
//
// A component never reaches for a global: it receives a Capabilities value at
// construction, declares which capabilities it needs, and degrades when one is
// missing instead of failing hard. The daemon fills every capability; tests
// leave out the ones they want to exercise as absent.
package host
