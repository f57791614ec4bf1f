package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadTxt reads whitespace separated values written by WriteTxt.
func ReadTxt[T any](filename string) ([]T, error) {

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	var data []T
	for {
		var element T
		_, err := fmt.Fscan(r, &element)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		data = append(data, element)
	}

	return data, nil
}

// WriteTxt writes f(element) on its own line for every element.
func WriteTxt[V, T any](filename string, data []T, f func(T) V) error {

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, element := range data {
		if _, err := fmt.Fprintln(w, f(element)); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return file.Close()
}
