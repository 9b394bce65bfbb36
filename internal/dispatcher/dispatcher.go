// Package dispatcher turns a user action on a complete descriptor into a
// download or a clipboard write.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vsixgrab/internal/download"
	"vsixgrab/internal/marketplace"
	"vsixgrab/internal/models"
	"vsixgrab/internal/schedule"
	"vsixgrab/internal/utils"
)

const SettleDelay = time.Second

type Downloader interface {
	Download(ctx context.Context, url, filename string) (string, error)
}

type Clipboard interface {
	WriteText(text string) error
}

type Opener interface {
	Open(url string) error
}

// Control is the UI element that triggered a dispatch.
type Control interface {
	SetEnabled(enabled bool)
}

// Notifier shows the result of a dispatch to the user.
type Notifier interface {
	Notify(o Outcome)
}

type OutcomeKind string

const (
	MissingData     OutcomeKind = "missing-data"
	InvalidAction   OutcomeKind = "invalid-action"
	DownloadStarted OutcomeKind = "download-started"
	DownloadFailed  OutcomeKind = "download-failed"
	Copied          OutcomeKind = "copied"
	CopyFailed      OutcomeKind = "copy-failed"
)

type Outcome struct {
	Kind       OutcomeKind           `json:"kind"`
	Request    models.PackageRequest `json:"request"`
	URL        string                `json:"url,omitempty"`
	DownloadID string                `json:"downloadId,omitempty"`
	Text       string                `json:"text,omitempty"`
	FellBack   bool                  `json:"fellBack,omitempty"`
	Err        error                 `json:"-"`
}

func (o Outcome) OK() bool {
	return o.Kind == DownloadStarted || o.Kind == Copied
}

// Message is the one-line notice shown for the outcome.
func (o Outcome) Message() string {
	d := o.Request.Descriptor
	switch o.Kind {
	case MissingData:
		return "Extension data not found on this page"
	case InvalidAction:
		return fmt.Sprintf("Unsupported action: %v", o.Err)
	case DownloadStarted:
		return fmt.Sprintf("Downloading %s v%s (%s)", d.Identifier, d.Version, o.Request.Kind)
	case DownloadFailed:
		if o.FellBack {
			return fmt.Sprintf("Download failed, opened %s in the browser: %v", o.Request.Kind, o.Err)
		}
		return fmt.Sprintf("Download failed: %v", o.Err)
	case Copied:
		return fmt.Sprintf("Download URLs for %s copied to clipboard", d.Identifier)
	case CopyFailed:
		return fmt.Sprintf("Failed to copy URLs: %v", o.Err)
	}
	return string(o.Kind)
}

type Dispatcher struct {
	downloader Downloader
	clipboard  Clipboard
	opener     Opener
	notifier   Notifier
	slots      *schedule.Slots
	settle     time.Duration
	resolve    func(models.Descriptor, models.PackageKind) string
	logger     *utils.Logger
}

type Option func(*Dispatcher)

func WithClock(c schedule.Clock) Option {
	return func(d *Dispatcher) { d.slots = schedule.NewSlots(c) }
}

func WithSettleDelay(delay time.Duration) Option {
	return func(d *Dispatcher) { d.settle = delay }
}

func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

func New(downloader Downloader, clipboard Clipboard, opener Opener, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		downloader: downloader,
		clipboard:  clipboard,
		opener:     opener,
		settle:     SettleDelay,
		resolve:    marketplace.ResolveDescriptor,
		logger:     utils.NewNamedLogger("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.slots == nil {
		d.slots = schedule.NewSlots(schedule.Real())
	}
	return d
}

// Dispatch runs one user action. ctl may be nil.
func (d *Dispatcher) Dispatch(ctx context.Context, desc models.Descriptor, action models.Action, ctl Control) Outcome {
	kind, purpose, ok := action.Request()
	if !ok {
		o := Outcome{Kind: InvalidAction, Request: models.PackageRequest{Descriptor: desc}, Err: fmt.Errorf("%w: action %q", models.ErrMalformedInput, action)}
		d.report(o)
		return o
	}
	return d.DispatchRequest(ctx, models.PackageRequest{Descriptor: desc, Kind: kind, Purpose: purpose}, ctl)
}

func (d *Dispatcher) DispatchRequest(ctx context.Context, req models.PackageRequest, ctl Control) Outcome {
	if ctl != nil {
		ctl.SetEnabled(false)
		d.slots.Schedule("reenable:"+string(actionOf(req)), d.settle, func() {
			ctl.SetEnabled(true)
		})
	}

	var o Outcome
	switch {
	case !req.Descriptor.IsComplete():
		o = Outcome{Kind: MissingData, Request: req, Err: models.ErrIncompleteData}
	case req.Purpose == models.PurposeCopy:
		o = d.copyURLs(req)
	case req.Purpose == models.PurposeDownload && req.Kind.Valid():
		o = d.download(ctx, req)
	default:
		o = Outcome{Kind: InvalidAction, Request: req, Err: fmt.Errorf("%w: %s/%s", models.ErrMalformedInput, req.Purpose, req.Kind)}
	}

	d.report(o)
	return o
}

func actionOf(req models.PackageRequest) models.Action {
	if req.Purpose == models.PurposeCopy {
		return models.ActionCopyURL
	}
	return models.Action(req.Kind)
}

func (d *Dispatcher) download(ctx context.Context, req models.PackageRequest) Outcome {
	desc := req.Descriptor
	url := d.resolve(desc, req.Kind)
	o := Outcome{Request: req, URL: url}

	if err := download.ValidateURL(url); err != nil {
		o.Kind = DownloadFailed
		o.Err = err
		return o
	}

	filename := marketplace.Filename(desc.Identifier, desc.Version, req.Kind)
	id, err := d.downloader.Download(ctx, url, filename)
	o.DownloadID = id
	if err == nil {
		o.Kind = DownloadStarted
		return o
	}

	o.Kind = DownloadFailed
	o.Err = err
	if errors.Is(err, models.ErrDomainNotAllowed) || errors.Is(err, models.ErrProtocolNotAllowed) {
		return o
	}

	if d.opener != nil {
		if openErr := d.opener.Open(url); openErr != nil {
			d.logger.LogWarning("fallback open of %s failed: %v", url, openErr)
		} else {
			o.FellBack = true
		}
	}
	return o
}

// CopyText is the block written to the clipboard for a descriptor.
func CopyText(desc models.Descriptor) string {
	return fmt.Sprintf("Download URLs for %s v%s\n\nVSIX package:\n%s\n\nVisual Studio package:\n%s",
		desc.Identifier, desc.Version,
		marketplace.ResolveDescriptor(desc, models.KindVSIX),
		marketplace.ResolveDescriptor(desc, models.KindVSIXPackage))
}

func (d *Dispatcher) copyURLs(req models.PackageRequest) Outcome {
	text := CopyText(req.Descriptor)
	o := Outcome{Request: req, Text: text}
	if err := d.clipboard.WriteText(text); err != nil {
		o.Kind = CopyFailed
		o.Err = fmt.Errorf("%w: %v", models.ErrCapabilityFailure, err)
		return o
	}
	o.Kind = Copied
	return o
}

func (d *Dispatcher) report(o Outcome) {
	if o.OK() {
		d.logger.LogInfo("%s", o.Message())
	} else {
		d.logger.LogWarning("%s", o.Message())
	}
	if d.notifier != nil {
		d.notifier.Notify(o)
	}
}
