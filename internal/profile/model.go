package profile

// LenderProfile mirrors a row of the backend's loanagents table.
type LenderProfile struct {
	ID             string `json:"id,omitempty"`
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	Tagline        string `json:"tagline,omitempty"`
	Description    string `json:"description,omitempty"`
	LogoURL        string `json:"logo_url,omitempty"`
	MinIncome      int    `json:"min_income,omitempty"`
	MinCreditScore int    `json:"min_credit_score,omitempty"`
	MinAge         int    `json:"min_age,omitempty"`
	MaxAge         int    `json:"max_age,omitempty"`
	Address        string `json:"address,omitempty"`
	City           string `json:"city,omitempty"`
	State          string `json:"state,omitempty"`
	Pincode        string `json:"pincode,omitempty"`
	ContactNumber  string `json:"contact_number,omitempty"`
	Email          string `json:"email,omitempty"`
	WorkingHours   string `json:"working_hours,omitempty"`
	Latitude       string `json:"latitude,omitempty"`
	Longitude      string `json:"longitude,omitempty"`
	WhatsappNumber string `json:"whatsapp_number,omitempty"`
	ApplyNowLink   string `json:"apply_now_link,omitempty"`
	GoogleMapsURL  string `json:"google_maps_url,omitempty"`
}

// LoanProduct mirrors a row of the loan_products table.
type LoanProduct struct {
	ID                string   `json:"id,omitempty"`
	LoanAgentID       string   `json:"loanagent_id,omitempty"`
	Type              string   `json:"type"`
	MinInterestRate   string   `json:"min_interest_rate,omitempty"`
	MaxInterestRate   string   `json:"max_interest_rate,omitempty"`
	MaxLoanAmount     string   `json:"max_loan_amount,omitempty"`
	MinTenure         string   `json:"min_tenure,omitempty"`
	MaxTenure         string   `json:"max_tenure,omitempty"`
	ProcessingFee     string   `json:"processing_fee,omitempty"`
	RequiredDocuments []string `json:"required_documents,omitempty"`
}

// Logo is an optional logo upload accompanying a profile save.
type Logo struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Draft is everything the profile builder submits in one go. The backend
// cannot persist it atomically; Save runs it as a resumable step sequence.
type Draft struct {
	Profile         LenderProfile `json:"profile"`
	EmploymentTypes []string      `json:"employment_types"`
	Products        []LoanProduct `json:"products"`
	Logo            *Logo         `json:"logo,omitempty"`
}
