// Package content takes over magnet link clicks on a page.
//
// The Interceptor is active only while the user is logged in with magnet link
// handling enabled, and follows both keys through store change notifications.
// An intercepted click is sent to the background as MAGNET_LINK_CLICKED and
// the reply comes back as a Notice for the page to show.
package content
