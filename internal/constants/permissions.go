package constants

import "os"

// Права на каталоги.
const (
	// DirPermStandard — владелец rwx, группа r-x.
	DirPermStandard os.FileMode = 0750
)

// Права на файлы.
const (
	// FilePermPrivate — только владелец rw. Снапшот содержит сообщения ошибок пользователей.
	FilePermPrivate os.FileMode = 0600
)
