package utils

import (
	"encoding/binary"
	"fmt"
	"os"
)

// ReadBinary loads a raw little endian dump of fixed size values, such as
// a recorded int32 track.
func ReadBinary[T any](filename string) ([]T, error) {

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	size := binary.Size(new(T))
	if size <= 0 {
		return nil, fmt.Errorf("type %T has no fixed size", *new(T))
	}
	if fileInfo.Size()%int64(size) != 0 {
		return nil, fmt.Errorf("file %s of %d bytes is not a multiple of %d", filename, fileInfo.Size(), size)
	}
	data := make([]T, int(fileInfo.Size())/size)

	err = binary.Read(file, binary.LittleEndian, &data)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return data, nil
}

func WriteBinary[T any](filename string, data []T) error {

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	err = binary.Write(file, binary.LittleEndian, data)
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return file.Close()
}
