package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/adrian-cg/earthquakes/internal/adapter/memview"
	"github.com/adrian-cg/earthquakes/internal/coordinator"
	"github.com/adrian-cg/earthquakes/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

const maxBodyBytes = 64 << 10

type viewResponse struct {
	State string `json:"state"`
	memview.Snapshot
}

type placeRequest struct {
	Name     string      `json:"name" validate:"required,max=256"`
	Location *pointBody  `json:"location"`
	Viewport *boundsBody `json:"viewport"`
}

type pointBody struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

type boundsBody struct {
	North float64 `json:"north" validate:"min=-90,max=90,gtfield=South"`
	South float64 `json:"south" validate:"min=-90,max=90"`
	East  float64 `json:"east" validate:"min=-180,max=180,gtfield=West"`
	West  float64 `json:"west" validate:"min=-180,max=180"`
}

func (p placeRequest) toDomain() domain.Place {
	place := domain.Place{Name: p.Name}
	if p.Location != nil {
		place.Location = &domain.Point{Lat: p.Location.Lat, Lng: p.Location.Lng}
	}
	if p.Viewport != nil {
		place.Viewport = &domain.BoundingBox{
			North: p.Viewport.North,
			South: p.Viewport.South,
			East:  p.Viewport.East,
			West:  p.Viewport.West,
		}
	}
	return place
}

// newValidator returns a validator reporting json field names with English messages.
func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)
	return validate, trans
}

func (s *Server) validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(s.trans))
	}
	return "validation error: " + strings.Join(msgs, "; ")
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, viewResponse{
		State:    s.app.State().String(),
		Snapshot: s.view.Snapshot(),
	})
}

func (s *Server) handleSelectPlace(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		errBadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		errBadRequest(w, s.validationMessage(err))
		return
	}

	s.dispatch(w, r, coordinator.PlaceSelected{Place: req.toDomain()})
}

func (s *Server) handleShowTopTen(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, coordinator.TopTenRequested{})
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, ev coordinator.Event) {
	if err := s.app.Dispatch(r.Context(), ev); err != nil {
		if errors.Is(err, coordinator.ErrStopped) {
			errUnavailable(w, "map is shutting down")
			return
		}
		s.logger.Error("dispatch event failed", "error", err)
		errInternal(w, "could not queue request")
		return
	}
	sharedobs.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
