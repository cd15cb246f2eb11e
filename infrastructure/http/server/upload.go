package server

import (
	"io"
	"mime/multipart"
	"net/http"

	"syncx/contract"
	"syncx/errors"

	"github.com/gin-gonic/gin"
)

// formFiles reads every file sent under field. A missing multipart body
// yields no files.
func (s *Server) formFiles(c *gin.Context, field string) ([]contract.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errors.ErrValidation.WithMessage("invalid form: %s", err.Error())
	}
	headers := form.File[field]
	files := make([]contract.File, 0, len(headers))
	for _, header := range headers {
		file, err := s.readFile(header)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

// formFile reads an optional single file.
func (s *Server) formFile(c *gin.Context, field string) (*contract.File, error) {
	files, err := s.formFiles(c, field)
	if err != nil || len(files) == 0 {
		return nil, err
	}
	return &files[0], nil
}

func (s *Server) readFile(header *multipart.FileHeader) (contract.File, error) {
	if header.Size > s.opts.MaxUploadBytes {
		return contract.File{}, errors.ErrValidation.WithMessage("%s exceeds %d bytes", header.Filename, s.opts.MaxUploadBytes)
	}
	f, err := header.Open()
	if err != nil {
		return contract.File{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.opts.MaxUploadBytes+1))
	if err != nil {
		return contract.File{}, err
	}
	return contract.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
