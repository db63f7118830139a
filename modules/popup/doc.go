// Package popup is the user's control panel: the login form, the logout
// button and the feature toggles.
//
// Every action returns the View to display next, carrying at most one
// message. Logging out goes through the background (USER_LOGOUT_REQUESTED)
// so that local cleanup happens in one place.
package popup
