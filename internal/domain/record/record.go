// Package record defines the domain records tracked by the reminder core:
// medications, appointments, prescriptions and doctors. Records are owned by
// the record store; the scheduling engine derives reminder sources from them
// on demand and never persists any reminder state of its own.
package record

import "time"

// Kind identifies a record collection.
type Kind string

const (
	KindMedication   Kind = "medication"
	KindAppointment  Kind = "appointment"
	KindPrescription Kind = "prescription"
	KindDoctor       Kind = "doctor"
)

// Frequency is a medication dosing frequency class. The values mirror the
// labels shown in the editing UI.
type Frequency string

const (
	FrequencyDaily      Frequency = "Daily"
	FrequencyTwiceDaily Frequency = "Twice a day"
	FrequencyWeekly     Frequency = "Weekly"
)

// Medication is a dosing schedule with an optional end date. Times are
// local-zone "HH:MM" strings; dates are "2006-01-02" strings.
type Medication struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Dosage          string    `json:"dosage,omitempty"`
	Frequency       Frequency `json:"frequency"`
	Times           []string  `json:"times"`
	StartDate       string    `json:"start_date"`
	EndDate         string    `json:"end_date,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	ReminderEnabled bool      `json:"reminder_enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Appointment is a single dated visit. DateTime is an RFC 3339 or
// "2006-01-02T15:04" local timestamp string.
type Appointment struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	DoctorName      string    `json:"doctor_name,omitempty"`
	DoctorID        int64     `json:"doctor_id,omitempty"`
	Location        string    `json:"location,omitempty"`
	DateTime        string    `json:"date_time"`
	Notes           string    `json:"notes,omitempty"`
	ReminderEnabled bool      `json:"reminder_enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Prescription tracks an issued prescription and its optional expiry date
// ("2006-01-02"). Prescriptions without an expiry never produce reminders.
type Prescription struct {
	ID             int64     `json:"id"`
	MedicationName string    `json:"medication_name"`
	DoctorName     string    `json:"doctor_name,omitempty"`
	DoctorID       int64     `json:"doctor_id,omitempty"`
	IssueDate      string    `json:"issue_date"`
	ExpiryDate     string    `json:"expiry_date,omitempty"`
	PhotoURI       string    `json:"photo_uri,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Doctor is a plain contact record. It carries no reminder source.
type Doctor struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DoseStatus records the outcome of a single scheduled dose.
type DoseStatus string

const (
	DoseTaken   DoseStatus = "taken"
	DoseMissed  DoseStatus = "missed"
	DoseSkipped DoseStatus = "skipped"
)

// DoseEvent is an entry in a medication's dose history.
type DoseEvent struct {
	ID           int64      `json:"id"`
	MedicationID int64      `json:"medication_id"`
	TakenAt      time.Time  `json:"taken_at"`
	Status       DoseStatus `json:"status"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// EntityID implementations let the store manage collections generically.

func (m *Medication) EntityID() int64        { return m.ID }
func (m *Medication) SetEntityID(id int64)   { m.ID = id }
func (a *Appointment) EntityID() int64       { return a.ID }
func (a *Appointment) SetEntityID(id int64)  { a.ID = id }
func (p *Prescription) EntityID() int64      { return p.ID }
func (p *Prescription) SetEntityID(id int64) { p.ID = id }
func (d *Doctor) EntityID() int64            { return d.ID }
func (d *Doctor) SetEntityID(id int64)       { d.ID = id }
func (e *DoseEvent) EntityID() int64         { return e.ID }
func (e *DoseEvent) SetEntityID(id int64)    { e.ID = id }

func (m *Medication) Created() time.Time       { return m.CreatedAt }
func (m *Medication) SetCreated(t time.Time)   { m.CreatedAt = t }
func (a *Appointment) Created() time.Time      { return a.CreatedAt }
func (a *Appointment) SetCreated(t time.Time)  { a.CreatedAt = t }
func (p *Prescription) Created() time.Time     { return p.CreatedAt }
func (p *Prescription) SetCreated(t time.Time) { p.CreatedAt = t }
func (d *Doctor) Created() time.Time           { return d.CreatedAt }
func (d *Doctor) SetCreated(t time.Time)       { d.CreatedAt = t }
func (e *DoseEvent) Created() time.Time        { return e.CreatedAt }
func (e *DoseEvent) SetCreated(t time.Time)    { e.CreatedAt = t }

func (m *Medication) Touch(created bool, now time.Time) {
	if created {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}

func (a *Appointment) Touch(created bool, now time.Time) {
	if created {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}

func (p *Prescription) Touch(created bool, now time.Time) {
	if created {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}

func (d *Doctor) Touch(created bool, now time.Time) {
	if created {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
}

func (e *DoseEvent) Touch(created bool, now time.Time) {
	if created {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}
