package winutil

import "context"

// EventLogExporter exports one event-log channel to a file. ChannelExists is
// a lightweight probe: channels are renamed or absent across OS builds, and
// an absent channel is a skip, not a failure.
type EventLogExporter interface {
	ChannelExists(ctx context.Context, channel string) bool
	Export(ctx context.Context, channel, outputPath string) (exitCode int, err error)
}

// WevtutilExporter drives wevtutil.exe.
type WevtutilExporter struct {
	Cmd Commander
}

func (e WevtutilExporter) ChannelExists(ctx context.Context, channel string) bool {
	_, code, err := e.Cmd.Run(ctx, "wevtutil", "gl", channel)
	return err == nil && code == 0
}

func (e WevtutilExporter) Export(ctx context.Context, channel, outputPath string) (int, error) {
	_, code, err := e.Cmd.Run(ctx, "wevtutil", "epl", channel, outputPath, "/ow:true")
	return code, err
}
