// Package runtime carries messages between the bridge's contexts and routes
// them in the background context.
//
// The protocol has two request/response messages. MAGNET_LINK_CLICKED sends a
// magnet link to the server on behalf of the logged-in user;
// USER_LOGOUT_REQUESTED clears the local session. Every message gets exactly
// one Reply.
//
// Senders never call the Router directly. In-process contexts use a Bus, and
// out-of-process clients use HTTPSender against the daemon's
// POST /runtime/messages endpoint. Both hand back an async.Future, and the
// handler finishes its work even when nobody waits for the reply.
package runtime
