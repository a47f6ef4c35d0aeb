package service

import "context"

// Announcer delivers a public message to the channel chat.
type Announcer interface {
	Announce(ctx context.Context, channel, message string) error
}

// Notifier delivers a private message to a linked account.
type Notifier interface {
	Notify(ctx context.Context, accountID int64, message string) error
}

// LiveChecker reports whether the channel is streaming right now.
type LiveChecker interface {
	IsLive(ctx context.Context, userLogin string) (bool, error)
}

// ClipCreator captures a clip of the live stream and returns its id.
type ClipCreator interface {
	CreateClip(ctx context.Context, userLogin string) (string, error)
}
