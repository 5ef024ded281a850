package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	service "github.com/okian/wearsense/internal/app"
	"github.com/okian/wearsense/internal/domain/apperr"
)

// multipartMemory bounds the in-memory part of a parsed multipart body.
const multipartMemory = 1 << 20

// sensorForm mirrors the form fields of POST /api/sensor.
type sensorForm struct {
	Secret     string `schema:"secret"`
	LocalTemp  string `schema:"local_temp"`
	LocalHumid string `schema:"local_humid"`
}

// comfortForm mirrors the form fields of POST /api/comfort.
type comfortForm struct {
	Secret  string   `schema:"secret"`
	Comfort []string `schema:"comfort"`
}

func invalidRequest(op string, err error) error {
	return &apperr.Error{Op: op, Kind: apperr.ErrValidation, Msg: service.MsgInvalidRequestData, Err: err}
}

// handlePredict handles POST /api/predict.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: fmt.Sprintf("Upload exceeds %d bytes.", s.maxUploadBytes)})
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			s.writeError(w, r, invalidRequest(op, err))
			return
		}
	}

	payload, err := readUpload(r, "image")
	if err != nil {
		s.writeError(w, r, invalidRequest(op, err))
		return
	}

	snap, err := s.deps.IngestImage(r.Context(), r.FormValue("secret"), payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// readUpload returns the named file part, or nil when the request has none.
func readUpload(r *http.Request, field string) ([]byte, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// handleSensor handles POST /api/sensor.
func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	const op = "api.sensor"

	values, err := formValues(r)
	if err != nil {
		s.writeError(w, r, invalidRequest(op, err))
		return
	}
	var form sensorForm
	if err := s.decoder.Decode(&form, values); err != nil {
		s.writeError(w, r, invalidRequest(op, err))
		return
	}

	temp, err := service.ParseReading("local_temp", form.LocalTemp)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	humid, err := service.ParseReading("local_humid", form.LocalHumid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.deps.IngestSensor(r.Context(), service.SensorInput{
		Secret:      form.Secret,
		Temperature: temp,
		Humidity:    humid,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// handleComfort handles POST /api/comfort. A single comfort value yields
// one object; several yield an array.
func (s *Server) handleComfort(w http.ResponseWriter, r *http.Request) {
	const op = "api.comfort"

	values, err := formValues(r)
	if err != nil {
		s.writeError(w, r, invalidRequest(op, err))
		return
	}
	var form comfortForm
	if err := s.decoder.Decode(&form, values); err != nil {
		s.writeError(w, r, invalidRequest(op, err))
		return
	}

	views, err := s.deps.IngestComfort(r.Context(), form.Secret, form.Comfort)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(views) == 1 {
		writeJSON(w, http.StatusCreated, views[0])
		return
	}
	writeJSON(w, http.StatusCreated, views)
}

// formValues collects body fields from urlencoded, multipart or flat JSON
// bodies into one url.Values.
func formValues(r *http.Request) (url.Values, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		return jsonValues(r.Body)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, err
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
	}
	return r.PostForm, nil
}

// jsonValues flattens a JSON object of scalars and scalar arrays.
func jsonValues(body io.Reader) (url.Values, error) {
	var raw map[string]any
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make(url.Values, len(raw))
	for key, v := range raw {
		items, ok := v.([]any)
		if !ok {
			items = []any{v}
		}
		for _, item := range items {
			s, err := scalar(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out.Add(key, s)
		}
	}
	return out, nil
}

func scalar(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("unsupported value %T", v)
	}
}
