package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultServiceTimeout = 30 * time.Second

// ServiceClient talks to an external face detection service over HTTP. The
// contract is small: GET /model describes the loaded model, POST /detect
// returns face boxes for an uploaded image, POST /landmarks returns the
// points for one region and POST /describe returns an identity descriptor.
// Images travel as multipart JPEG uploads, regions as form fields.
type ServiceClient struct {
	baseURL string
	client  *http.Client
	model   string
	points  int
}

// modelInfo is the GET /model response.
type modelInfo struct {
	Model  string `json:"model"`
	Points int    `json:"points"`
}

// serviceBox is one detected face in a POST /detect response.
type serviceBox struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Score  float64 `json:"score"`
}

type detectResponse struct {
	Faces []serviceBox `json:"faces"`
}

type servicePoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type landmarksResponse struct {
	Points []servicePoint `json:"points"`
}

type describeResponse struct {
	Descriptor []float32 `json:"descriptor"`
}

// NewServiceClient connects to the detection service at baseURL and reads
// its model description. An unreachable service or a model without landmark
// points is an error.
func NewServiceClient(ctx context.Context, baseURL string) (*ServiceClient, error) {
	c := &ServiceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultServiceTimeout},
	}
	info, err := c.fetchModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading model description: %w", err)
	}
	if info.Points <= 0 {
		return nil, fmt.Errorf("service reports no landmark points for model %q", info.Model)
	}
	c.model = info.Model
	c.points = info.Points
	return c, nil
}

// Model returns the model name the service reports.
func (c *ServiceClient) Model() string { return c.model }

// Detect uploads the image and returns the face boxes the service found.
func (c *ServiceClient) Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	data, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}
	body, err := c.postImage(ctx, "/detect", data, nil)
	if err != nil {
		return nil, err
	}
	var parsed detectResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing detect response: %w", err)
	}
	boxes := make([]image.Rectangle, 0, len(parsed.Faces))
	for _, f := range parsed.Faces {
		boxes = append(boxes, image.Rect(f.X, f.Y, f.X+f.Width, f.Y+f.Height))
	}
	return boxes, nil
}

// Locate uploads the image and region and returns the landmark points.
func (c *ServiceClient) Locate(ctx context.Context, img image.Image, region image.Rectangle) ([]image.Point, error) {
	data, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}
	body, err := c.postImage(ctx, "/landmarks", data, regionFields(region))
	if err != nil {
		return nil, err
	}
	var parsed landmarksResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing landmarks response: %w", err)
	}
	if len(parsed.Points) != c.points {
		return nil, fmt.Errorf("service returned %d points, want %d", len(parsed.Points), c.points)
	}
	points := make([]image.Point, len(parsed.Points))
	for i, p := range parsed.Points {
		points[i] = image.Pt(p.X, p.Y)
	}
	return points, nil
}

// LandmarkCount reports the points per face of the service model.
func (c *ServiceClient) LandmarkCount() int { return c.points }

// Describe uploads the image and region and returns the identity descriptor.
func (c *ServiceClient) Describe(ctx context.Context, img image.Image, region image.Rectangle) ([]float32, error) {
	data, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}
	body, err := c.postImage(ctx, "/describe", data, regionFields(region))
	if err != nil {
		return nil, err
	}
	var parsed describeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing describe response: %w", err)
	}
	if len(parsed.Descriptor) == 0 {
		return nil, fmt.Errorf("service returned an empty descriptor")
	}
	return parsed.Descriptor, nil
}

// Close drops idle connections to the service.
func (c *ServiceClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *ServiceClient) fetchModel(ctx context.Context) (*modelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/model", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	var info modelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}
	return &info, nil
}

// postImage uploads JPEG data plus optional form fields to the endpoint and
// returns the response body.
func (c *ServiceClient) postImage(ctx context.Context, endpoint string, imageData []byte, fields map[string]string) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("writing image data: %w", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("writing field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func regionFields(r image.Rectangle) map[string]string {
	return map[string]string{
		"x":      strconv.Itoa(r.Min.X),
		"y":      strconv.Itoa(r.Min.Y),
		"width":  strconv.Itoa(r.Dx()),
		"height": strconv.Itoa(r.Dy()),
	}
}

var (
	_ Detector  = (*ServiceClient)(nil)
	_ Describer = (*ServiceClient)(nil)
)
