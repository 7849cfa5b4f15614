package enums

import "slices"

// LibraryStatus tracks the install state of an owned game.
type LibraryStatus string

const (
	LibraryStatusNotStarted LibraryStatus = "not_started"
	LibraryStatusInstalling LibraryStatus = "installing"
	LibraryStatusInstalled  LibraryStatus = "installed"
	LibraryStatusUpdating   LibraryStatus = "updating"
)

var libraryStatuses = values[LibraryStatus]{
	LibraryStatusNotStarted,
	LibraryStatusInstalling,
	LibraryStatusInstalled,
	LibraryStatusUpdating,
}

// LibraryStatuses lists the members in display order.
func LibraryStatuses() []LibraryStatus { return slices.Clone(libraryStatuses) }

func (s LibraryStatus) String() string { return string(s) }

func (s LibraryStatus) IsValid() bool { return libraryStatuses.has(s) }

func ParseLibraryStatus(raw string) (LibraryStatus, error) {
	return libraryStatuses.parse("library status", raw)
}
