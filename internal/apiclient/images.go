package apiclient

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/kingrea/insurecontent/internal/content"
)

type regenerateRequest struct {
	ImageDescription string `json:"image_description,omitempty"`
}

type downloadResponse struct {
	Message     string `json:"message"`
	Filename    string `json:"filename"`
	ImageData   string `json:"image_data"`
	ContentType string `json:"content_type"`
}

// GenerateImage creates the image for one post.
func (c *Client) GenerateImage(ctx context.Context, postID int64) (content.ImageResult, error) {
	var resp content.ImageResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/images/generate-image/%d", postID), nil, &resp); err != nil {
		return content.ImageResult{}, err
	}
	return resp, nil
}

// GenerateAllImages creates images for every post of the schedule that
// lacks one. The server reports per-post outcomes in the result.
func (c *Client) GenerateAllImages(ctx context.Context, scheduleID int64) (content.BatchImageResult, error) {
	var resp content.BatchImageResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/images/generate-all-images/%d", scheduleID), nil, &resp); err != nil {
		return content.BatchImageResult{}, err
	}
	return resp, nil
}

// RegenerateImage replaces a post's image, optionally with a new description.
func (c *Client) RegenerateImage(ctx context.Context, postID int64, description string) (content.ImageResult, error) {
	body := regenerateRequest{ImageDescription: strings.TrimSpace(description)}
	var resp content.ImageResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/images/regenerate-image/%d", postID), body, &resp); err != nil {
		return content.ImageResult{}, err
	}
	return resp, nil
}

// DownloadImage fetches a post's image bytes.
func (c *Client) DownloadImage(ctx context.Context, postID int64) (content.DownloadedImage, error) {
	var resp downloadResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/images/download-image/%d", postID), nil, &resp); err != nil {
		return content.DownloadedImage{}, err
	}
	data, err := hex.DecodeString(strings.TrimSpace(resp.ImageData))
	if err != nil {
		return content.DownloadedImage{}, fmt.Errorf("apiclient: decode image %d: %w", postID, err)
	}
	return content.DownloadedImage{
		Filename:    resp.Filename,
		ContentType: resp.ContentType,
		Data:        data,
	}, nil
}
