package backup

import (
	"context"
	"os"
	"threadmark/internal/providers"
	"threadmark/internal/storage"
	"threadmark/internal/storage/interfaces"
)

// FileManager keeps a compressed backup document on disk.
type FileManager struct {
	engine     EngineInterface
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileManager(compressor interfaces.CompressorInterface, engine EngineInterface, logger providers.Logger) *FileManager {
	return &FileManager{
		compressor: compressor,
		engine:     engine,
		logger:     logger,
	}
}

func (f *FileManager) SaveToFile(ctx context.Context, fileName string) error {
	jsonData, err := f.engine.ExportJSON(ctx)
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(fileName, data)
}

// LoadFromFile replaces the store with the backup at fileName. A missing
// file is not an error and reports false.
func (f *FileManager) LoadFromFile(ctx context.Context, fileName string) (bool, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	decompressedData, err := f.compressor.Decompress(data)
	if err != nil {
		return false, err
	}

	res, err := f.engine.Import(ctx, decompressedData, ModeReplace)
	if err != nil {
		f.logger.Warnf(providers.TypeApp, "Backup %s rejected: %v", fileName, err)
		return false, err
	}
	f.logger.Infof(providers.TypeApp, "Restored %d threads from %s", res.Imported, fileName)
	return true, nil
}
