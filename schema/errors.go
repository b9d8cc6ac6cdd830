package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTabNotFound indicates a requested tab could not be found.
	ErrTabNotFound = errors.New("tab not found")
	// ErrGroupNotFound indicates a requested group could not be found.
	ErrGroupNotFound = errors.New("group not found")
	// ErrDocumentNotFound indicates a document was not registered or was collected.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrVersionNotFound indicates a version is not part of the document.
	ErrVersionNotFound = errors.New("version not found")
	// ErrPinnedSource indicates a pinned tab cannot be dragged.
	ErrPinnedSource = errors.New("pinned tab cannot be moved")
	// ErrPinnedTarget indicates a drop onto a pinned tab across groups.
	ErrPinnedTarget = errors.New("cannot drop onto a pinned tab")
	// ErrPinnedBoundary indicates an unpinned tab would land inside the pinned prefix.
	ErrPinnedBoundary = errors.New("unpinned tab cannot be placed among pinned tabs")
	// ErrNoopMove indicates the drop would not change the order.
	ErrNoopMove = errors.New("move does not change order")
	// ErrNoLocator indicates the tab has no resource locator for the action.
	ErrNoLocator = errors.New("tab has no resource locator")
	// ErrActivateFailed indicates every activation strategy failed.
	ErrActivateFailed = errors.New("tab activation failed")
	// ErrOperationBusy indicates another operation is already running on the tab.
	ErrOperationBusy = errors.New("tab operation in progress")
	// ErrNotCancellable indicates the running operation cannot be cancelled.
	ErrNotCancellable = errors.New("operation is not cancellable")
	// ErrSameGroup indicates a cross-group move targets the origin group.
	ErrSameGroup = errors.New("tab already in target group")
)
