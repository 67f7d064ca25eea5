package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"diseasepredict/internal/diagnosis"
	"diseasepredict/internal/form"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	index *template.Template
	form  *template.Template
}

func loadPages() (*pages, error) {
	index, err := template.ParseFS(templateFS, "templates/layout.html", "templates/index.html")
	if err != nil {
		return nil, err
	}
	formPage, err := template.ParseFS(templateFS, "templates/layout.html", "templates/form.html")
	if err != nil {
		return nil, err
	}
	return &pages{index: index, form: formPage}, nil
}

// control is one rendered input.
type control struct {
	Key       string
	Label     string
	Help      template.HTML
	InputType string
	Kind      string
	Min       string
	Max       string
	Step      string
	Value     string
}

type pageData struct {
	Title         string
	Forms         []diagnosis.DiseaseForm
	Form          *diagnosis.DiseaseForm
	Controls      []control
	Notices       []Notification
	Notifications []Notification
	Disclaimer    string
}

// controls resolves each field of f; submitted values win over defaults.
func (s *Server) controls(f diagnosis.DiseaseForm, submitted map[string]string) []control {
	out := make([]control, 0, len(f.Fields))
	for _, spec := range f.Fields {
		resolved := form.Resolve(spec)
		c := control{
			Key:       spec.Key,
			Label:     spec.Label,
			Help:      template.HTML(s.sanitizer.Sanitize(spec.Tooltip)),
			InputType: "number",
			Kind:      resolved.Kind.String(),
			Min:       resolved.HTMLMin(),
			Max:       resolved.HTMLMax(),
			Step:      resolved.HTMLStep(),
			Value:     resolved.FormatValue(resolved.Min),
		}
		if spec.DeclaredType() == form.TypeText {
			c.InputType = "text"
			c.Value = ""
		}
		if v, ok := submitted[spec.Key]; ok {
			c.Value = v
		}
		out = append(out, c)
	}
	return out
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, t *template.Template, status int, data pageData) {
	data.Forms = s.dispatcher.Catalog().Forms()
	data.Disclaimer = Disclaimer

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		log.Error().Err(err).Str("request_id", RequestIDFrom(r.Context())).Msg("Failed to render page")
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, s.pages.index, http.StatusOK, pageData{Title: "Disease Prediction System"})
}

func (s *Server) lookupForm(w http.ResponseWriter, r *http.Request) (diagnosis.DiseaseForm, bool) {
	id := mux.Vars(r)["disease"]
	f, ok := s.dispatcher.Catalog().Get(id)
	if !ok {
		s.render(w, r, s.pages.index, http.StatusNotFound, pageData{
			Title: "Disease Prediction System",
			Notifications: []Notification{{
				Level:     LevelError,
				Message:   "Unknown disease: " + id,
				RequestID: RequestIDFrom(r.Context()),
			}},
		})
	}
	return f, ok
}

func (s *Server) formPage(f diagnosis.DiseaseForm, submitted map[string]string, results []Notification) pageData {
	data := pageData{
		Title:         f.Title,
		Form:          &f,
		Controls:      s.controls(f, submitted),
		Notifications: results,
	}
	if n, ok := noticeNotification(f); ok {
		data.Notices = append(data.Notices, n)
	}
	return data
}

func (s *Server) handleFormPage(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupForm(w, r)
	if !ok {
		return
	}
	s.render(w, r, s.pages.form, http.StatusOK, s.formPage(f, nil, nil))
}

func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupForm(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	submitted := make(map[string]string, len(f.Fields))
	for _, key := range f.Keys() {
		if vs, present := r.PostForm[key]; present && len(vs) > 0 {
			submitted[key] = vs[0]
		}
	}

	n := s.submit(r.Context(), "form", f.ID, nil, submitted)
	s.render(w, r, s.pages.form, http.StatusOK, s.formPage(f, submitted, []Notification{n}))
}
