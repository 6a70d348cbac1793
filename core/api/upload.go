package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/dnslin/essaymate-desktop/core/httpclient"
)

// MaxImageSize 单张图片大小上限（10 MiB）。
const MaxImageSize = 10 * 1024 * 1024

// ImageFile 一张待上传的作文照片。
type ImageFile struct {
	Name string
	MIME string
	Data []byte
}

// Submission 一次作文提交，文字与图片至少有其一。
type Submission struct {
	Text   string
	Images []ImageFile
}

// Validate 执行客户端前置校验。校验失败时请求不会触网，也不改动任何共享状态。
func (s *Submission) Validate() error {
	if s == nil || (strings.TrimSpace(s.Text) == "" && len(s.Images) == 0) {
		return &ValidationError{Message: "请输入文字或上传图片"}
	}
	for _, img := range s.Images {
		if !strings.HasPrefix(img.MIME, "image/") {
			return &ValidationError{Message: "只能上传图片文件（image/*）"}
		}
		if len(img.Data) > MaxImageSize {
			return &ValidationError{Message: fmt.Sprintf("单张图片大小不能超过 %dMB", MaxImageSize/(1024*1024))}
		}
	}
	return nil
}

// SubmitEssay 以 multipart 形式提交作文，返回提交回执。
func (c *Client) SubmitEssay(ctx context.Context, sub Submission) (*SubmitReceipt, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	payload, contentType, err := encodeSubmission(sub)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.baseURL, pathUpload), bytes.NewReader(payload))
	if err != nil {
		return nil, &httpclient.ConfigError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	env, _, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &BusinessError{Code: env.Code, Message: env.Message}
	}
	receipt, err := DecodeData[*SubmitReceipt](env)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		receipt = &SubmitReceipt{}
	}
	return receipt, nil
}

func encodeSubmission(sub Submission) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if sub.Text != "" {
		if err := writer.WriteField("text", sub.Text); err != nil {
			return nil, "", err
		}
	}
	for _, img := range sub.Images {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, img.Name))
		header.Set("Content-Type", img.MIME)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
