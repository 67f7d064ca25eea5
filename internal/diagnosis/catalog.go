// Package diagnosis defines the five disease forms and the dispatcher that
// turns a submitted form into a diagnosis label.
//
// A DiseaseForm fixes the order of the feature vector a model was trained on.
// That order is an external contract: nothing here can check it against the
// artifact, so the field lists must be kept in step with the training code.
package diagnosis

import (
	"fmt"

	"diseasepredict/internal/form"
)

// Disease identifiers, also used as registry keys.
const (
	Diabetes     = "diabetes"
	HeartDisease = "heart_disease"
	Parkinsons   = "parkinsons"
	LungCancer   = "lung_cancer"
	Thyroid      = "thyroid"
)

// Labels are the user-facing outcomes of a binary diagnosis.
type Labels struct {
	Positive string `json:"positive" yaml:"positive"`
	Negative string `json:"negative" yaml:"negative"`
}

// NoticeLevel is the severity a form notice is shown with.
type NoticeLevel string

const (
	NoticeWarning  NoticeLevel = "warning"
	NoticeCritical NoticeLevel = "critical"
)

// Valid reports whether l is empty or a known level.
func (l NoticeLevel) Valid() bool {
	switch l {
	case "", NoticeWarning, NoticeCritical:
		return true
	}
	return false
}

// DiseaseForm is the static definition of one prediction page.
type DiseaseForm struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Title            string           `json:"title"`
	Intro            string           `json:"intro"`
	Button           string           `json:"button"`
	Artifact         string           `json:"artifact"`
	Columns          int              `json:"columns"`
	Fields           []form.FieldSpec `json:"fields"`
	ExpectedFeatures int              `json:"expected_features"`
	Labels           Labels           `json:"labels"`
	Rule             LabelRule        `json:"-"`
	Notice           string           `json:"notice,omitempty"`
	NoticeLevel      NoticeLevel      `json:"notice_level,omitempty"`
	InputHint        string           `json:"input_hint,omitempty"`
	PredictionHint   string           `json:"prediction_hint,omitempty"`
	Provisional      bool             `json:"provisional"`
}

// Keys returns the field keys in vector order.
func (f DiseaseForm) Keys() []string {
	keys := make([]string, len(f.Fields))
	for i, spec := range f.Fields {
		keys[i] = spec.Key
	}
	return keys
}

// Catalog is an ordered, read-only set of disease forms.
type Catalog struct {
	forms []DiseaseForm
	byID  map[string]int
}

// NewCatalog builds a catalog, rejecting empty or duplicate IDs.
func NewCatalog(forms ...DiseaseForm) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(forms))}
	for _, f := range forms {
		if f.ID == "" {
			return nil, fmt.Errorf("disease form %q has no id", f.Name)
		}
		if _, dup := c.byID[f.ID]; dup {
			return nil, fmt.Errorf("duplicate disease form %q", f.ID)
		}
		if f.ExpectedFeatures <= 0 {
			return nil, fmt.Errorf("disease form %q: expected feature count must be positive", f.ID)
		}
		if !f.NoticeLevel.Valid() {
			return nil, fmt.Errorf("disease form %q: unknown notice level %q", f.ID, f.NoticeLevel)
		}
		if f.Rule == nil {
			f.Rule = DefaultRule
		}
		c.byID[f.ID] = len(c.forms)
		c.forms = append(c.forms, f)
	}
	return c, nil
}

// Get returns the form for id.
func (c *Catalog) Get(id string) (DiseaseForm, bool) {
	i, ok := c.byID[id]
	if !ok {
		return DiseaseForm{}, false
	}
	return c.forms[i], true
}

// Forms returns the forms in display order.
func (c *Catalog) Forms() []DiseaseForm {
	return append([]DiseaseForm(nil), c.forms...)
}

// DefaultCatalog returns the built-in forms.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(builtinForms()...)
	if err != nil {
		panic(err)
	}
	return c
}

func field(label, tooltip, key string) form.FieldSpec {
	return form.FieldSpec{Label: label, Tooltip: tooltip, Key: key, Type: form.TypeNumber}
}

const lungCodingHint = "Enter 1 for No, 2 for Yes (Verify!)"

func builtinForms() []DiseaseForm {
	return []DiseaseForm{
		{
			ID:       Diabetes,
			Name:     "Diabetes Prediction",
			Title:    "Diabetes Prediction",
			Intro:    "Enter the following details:",
			Button:   "Predict Diabetes",
			Artifact: "diabetes_model.sav",
			Columns:  3,
			Fields: []form.FieldSpec{
				field("Number of Pregnancies", "Enter number of times pregnant", "Pregnancies"),
				field("Glucose Level", "Enter plasma glucose concentration (mg/dL)", "Glucose"),
				field("Blood Pressure (mm Hg)", "Enter diastolic blood pressure", "BloodPressure"),
				field("Skin Thickness (mm)", "Enter triceps skin fold thickness", "SkinThickness"),
				field("Insulin Level (mu U/ml)", "Enter 2-Hour serum insulin", "Insulin"),
				field("BMI (kg/m²)", "Enter Body Mass Index value", "BMI"),
				field("Diabetes Pedigree Function", "Enter diabetes pedigree function value", "DiabetesPedigreeFunction"),
				field("Age (years)", "Enter age of the person", "Age"),
			},
			ExpectedFeatures: 8,
			Labels:           Labels{Positive: "The person is Diabetic", Negative: "The person is Not Diabetic"},
			Rule:             DefaultRule,
		},
		{
			ID:       HeartDisease,
			Name:     "Heart Disease Prediction",
			Title:    "Heart Disease Prediction",
			Intro:    "Enter the following details:",
			Button:   "Predict Heart Disease",
			Artifact: "heart_disease_model.sav",
			Columns:  3,
			Fields: []form.FieldSpec{
				field("Age (years)", "Enter age", "age_hd"),
				field("Sex", "1 = male; 0 = female", "sex_hd"),
				field("Chest Pain Type (cp)", "0-3: typical, atypical, non-anginal, asymptomatic", "cp_hd"),
				field("Resting Blood Pressure (mm Hg)", "Enter resting blood pressure", "trestbps_hd"),
				field("Serum Cholesterol (mg/dl)", "Enter serum cholesterol", "chol_hd"),
				field("Fasting Blood Sugar > 120 mg/dl (fbs)", "1 = true; 0 = false", "fbs_hd"),
				field("Resting ECG Results (restecg)", "0, 1, or 2", "restecg_hd"),
				field("Max Heart Rate Achieved (thalach)", "Enter maximum heart rate", "thalach_hd"),
				field("Exercise Induced Angina (exang)", "1 = yes; 0 = no", "exang_hd"),
				field("ST Depression (oldpeak)", "ST depression induced by exercise relative to rest", "oldpeak_hd"),
				field("Slope of Peak Exercise ST Segment", "0, 1, or 2", "slope_hd"),
				field("Major Vessels Colored by Fluoroscopy (ca)", "Number of major vessels (0-3)", "ca_hd"),
				field("Thalassemia (thal)", "0=normal; 1=fixed defect; 2=reversible defect (check dataset codes: 0/1/2 or 1/2/3)", "thal_hd"),
			},
			ExpectedFeatures: 13,
			Labels:           Labels{Positive: "The person Has Heart Disease", Negative: "The person Does Not Have Heart Disease"},
			Rule:             DefaultRule,
		},
		{
			ID:       Parkinsons,
			Name:     "Parkinsons Prediction",
			Title:    "Parkinson's Disease Prediction",
			Intro:    "Enter the following vocal measurement details:",
			Button:   "Predict Parkinson's",
			Artifact: "parkinsons_model.sav",
			Columns:  4,
			Fields: []form.FieldSpec{
				field("MDVP:Fo(Hz)", "Average vocal fundamental frequency", "fo_pd"),
				field("MDVP:Fhi(Hz)", "Maximum vocal fundamental frequency", "fhi_pd"),
				field("MDVP:Flo(Hz)", "Minimum vocal fundamental frequency", "flo_pd"),
				field("MDVP:Jitter(%)", "MDVP jitter in percentage", "Jitter_percent_pd"),
				field("MDVP:Jitter(Abs)", "MDVP absolute jitter in ms", "Jitter_Abs_pd"),
				field("MDVP:RAP", "MDVP Relative Amplitude Perturbation", "RAP_pd"),
				field("MDVP:PPQ", "MDVP five-point Period Perturbation Quotient", "PPQ_pd"),
				field("Jitter:DDP", "Average absolute difference of differences between jitter cycles", "DDP_pd"),
				field("MDVP:Shimmer", "MDVP local shimmer", "Shimmer_pd"),
				field("MDVP:Shimmer(dB)", "MDVP local shimmer in dB", "Shimmer_dB_pd"),
				field("Shimmer:APQ3", "Three-point Amplitude Perturbation Quotient", "APQ3_pd"),
				field("Shimmer:APQ5", "Five-point Amplitude Perturbation Quotient", "APQ5_pd"),
				field("MDVP:APQ", "MDVP 11-point Amplitude Perturbation Quotient", "APQ_pd"),
				field("Shimmer:DDA", "Average absolute difference between consecutive differences in amplitude", "DDA_pd"),
				field("NHR", "Noise-to-Harmonics Ratio", "NHR_pd"),
				field("HNR", "Harmonics-to-Noise Ratio", "HNR_pd"),
				field("RPDE", "Recurrence Period Density Entropy measure", "RPDE_pd"),
				field("DFA", "Signal fractal scaling exponent", "DFA_pd"),
				field("spread1", "Nonlinear fundamental frequency variation measure 1", "spread1_pd"),
				field("spread2", "Nonlinear fundamental frequency variation measure 2", "spread2_pd"),
				field("D2", "Correlation dimension", "D2_pd"),
				field("PPE", "Pitch Period Entropy", "PPE_pd"),
			},
			ExpectedFeatures: 22,
			Labels:           Labels{Positive: "The person Has Parkinson's Disease", Negative: "The person Does Not Have Parkinson's Disease"},
			Rule:             DefaultRule,
		},
		{
			ID:       LungCancer,
			Name:     "Lung Cancer Prediction",
			Title:    "Lung Cancer Prediction",
			Intro:    "Enter the following details based on symptoms and habits:",
			Button:   "Predict Lung Cancer",
			Artifact: "lungs_disease_model.sav",
			Columns:  3,
			Fields: []form.FieldSpec{
				field("Gender", "1 = Male; 0 = Female", "GENDER_lc"),
				field("Age (years)", "Enter age", "AGE_lc"),
				field("Smoking", lungCodingHint, "SMOKING_lc"),
				field("Yellow Fingers", lungCodingHint, "YELLOW_FINGERS_lc"),
				field("Anxiety", lungCodingHint, "ANXIETY_lc"),
				field("Peer Pressure", lungCodingHint, "PEER_PRESSURE_lc"),
				field("Chronic Disease", lungCodingHint, "CHRONIC_DISEASE_lc"),
				field("Fatigue", lungCodingHint, "FATIGUE_lc"),
				field("Allergy", lungCodingHint, "ALLERGY_lc"),
				field("Wheezing", lungCodingHint, "WHEEZING_lc"),
				field("Alcohol Consuming", lungCodingHint, "ALCOHOL_CONSUMING_lc"),
				field("Coughing", lungCodingHint, "COUGHING_lc"),
				field("Shortness Of Breath", lungCodingHint, "SHORTNESS_OF_BREATH_lc"),
				field("Swallowing Difficulty", lungCodingHint, "SWALLOWING_DIFFICULTY_lc"),
				field("Chest Pain", lungCodingHint, "CHEST_PAIN_lc"),
			},
			ExpectedFeatures: 15,
			Labels:           Labels{Positive: "The person likely Has Lung Cancer", Negative: "The person likely Does Not Have Lung Cancer"},
			Rule:             LungCancerRule,
			Notice:           "Note: Verify the numerical coding (e.g., 1/0 or 2/1) for Yes/No inputs required by the Lung Cancer model.",
			NoticeLevel:      NoticeWarning,
			InputHint:        "using correct Yes/No coding",
		},
		{
			ID:       Thyroid,
			Name:     "Hypo-Thyroid Prediction",
			Title:    "Hypo-Thyroid Prediction",
			Intro:    "Enter the following details:",
			Button:   "Predict Hypothyroidism",
			Artifact: "Thyroid_model.sav",
			Columns:  2,
			Fields: []form.FieldSpec{
				field("Age (years)", "Enter age", "age_thyroid"),
				field("Sex", "1 = Male; 0 = Female", "sex_thyroid"),
				field("On Thyroxine Medication", "1 = Yes; 0 = No", "on_thyroxine_thyroid"),
				field("Query On Thyroxine", "1 = Yes; 0 = No", "query_on_thyroxine_thyroid"),
			},
			// Placeholder: the real count depends on the training schema of Thyroid_model.sav.
			ExpectedFeatures: 4,
			Labels:           Labels{Positive: "The person likely Has Hypothyroidism", Negative: "The person likely Does Not Have Hypothyroidism"},
			Rule:             DefaultRule,
			Notice:           "CRITICAL WARNING: This form assumes the Thyroid model only needs 4 features. This is highly unlikely; supply the model's real training schema through a catalog override.",
			NoticeLevel:      NoticeCritical,
			PredictionHint:   "Verify required features for Thyroid model.",
			Provisional:      true,
		},
	}
}
