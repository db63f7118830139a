// Package downloads uploads completed .torrent downloads to the server.
//
// The Watcher consumes download deltas from the host. For every download that
// becomes complete and ends in .torrent, and only while the user is logged in
// with .torrent handling enabled, it posts the file as multipart form data to
// /add_torrent_file and reports the outcome as a system notification. When
// removeTorrentAfterUpload is set the local file is deleted after a successful
// upload; a failed removal gets its own notification.
//
// Routine failures are tagged with a Kind and logged without notifying the
// user.
package downloads
