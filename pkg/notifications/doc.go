// Package notifications delivers system notifications, the user-facing
// messages raised by the background components (upload results, logout).
//
// Components depend on the Notifier interface. The daemon wires a
// MultiNotifier that forwards every notification to a LogNotifier and to a
// BroadcastNotifier, whose subscribers back the /notifications/stream
// endpoint:
//
//	live := notifications.NewBroadcastNotifier(16)
//	n := notifications.NewMultiNotifier([]notifications.Notifier{
//	    notifications.NewLogNotifier(log),
//	    live,
//	})
//	_ = n.Notify(ctx, notifications.New(notifications.TypeSuccess, ".torrent Uploaded", "a.torrent successfully uploaded."))
package notifications
