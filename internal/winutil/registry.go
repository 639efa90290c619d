package winutil

import "context"

// RegistryExporter exports one registry key, recursively, to a file.
type RegistryExporter interface {
	Export(ctx context.Context, key, outputPath string) (exitCode int, err error)
}

// RegExporter drives reg.exe.
type RegExporter struct {
	Cmd Commander
}

func (e RegExporter) Export(ctx context.Context, key, outputPath string) (int, error) {
	_, code, err := e.Cmd.Run(ctx, "reg", "export", key, outputPath, "/y")
	return code, err
}
