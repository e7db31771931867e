package snapshot

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Kargones/errwatch/internal/constants"
	"github.com/Kargones/errwatch/internal/pkg/apperrors"
)

// FileStore хранит снапшот в JSON-файле. Запись атомарна: данные пишутся
// во временный файл рядом с целевым и переименовываются.
type FileStore struct {
	path string
}

// NewFileStore создаёт хранилище для файла path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path возвращает путь к файлу снапшота.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(context.Context) (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, apperrors.NewAppError(apperrors.ErrSnapshotRead, "не удалось прочитать "+f.path, err)
	}
	return decode(data)
}

func (f *FileStore) Save(_ context.Context, s Snapshot) error {
	data, err := encode(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, constants.DirPermStandard); err != nil {
		return apperrors.NewAppError(apperrors.ErrSnapshotWrite, "не удалось создать каталог "+dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrSnapshotWrite, "не удалось создать временный файл", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// после успешного переименования файла уже нет
		_ = os.Remove(tmpName) //nolint:errcheck // best effort
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close() //nolint:errcheck // ошибка записи важнее
		return apperrors.NewAppError(apperrors.ErrSnapshotWrite, "не удалось записать снапшот", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close() //nolint:errcheck // ошибка синхронизации важнее
		return apperrors.NewAppError(apperrors.ErrSnapshotWrite, "не удалось сбросить снапшот на диск", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewAppError(apperrors.ErrSnapshotWrite, "не удалось закрыть временный файл", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return apperrors.NewAppError(apperrors.ErrSnapshotWrite, "не удалось заменить "+f.path, err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
