package appointment

// Appointment is a row of the consultas table. Dates and times are kept as
// the caller sent them; nothing parses or normalises them.
type Appointment struct {
	ID              int64  `json:"id"`
	Name            string `json:"nome"`
	BirthDate       string `json:"data_nascimento"`
	AppointmentDate string `json:"data_atendimento"`
	Time            string `json:"horario"`
	Kind            string `json:"tipo"`
}

// Draft holds the mutable fields of an appointment. A nil field was absent
// from the request and reaches the store as NULL.
type Draft struct {
	Name            *string `json:"nome"`
	BirthDate       *string `json:"data_nascimento"`
	AppointmentDate *string `json:"data_atendimento"`
	Time            *string `json:"horario"`
	Kind            *string `json:"tipo"`
}

// Missing lists the columns a draft leaves NULL.
func (d Draft) Missing() []string {
	var out []string
	if d.Name == nil {
		out = append(out, "nome")
	}
	if d.BirthDate == nil {
		out = append(out, "data_nascimento")
	}
	if d.AppointmentDate == nil {
		out = append(out, "data_atendimento")
	}
	if d.Time == nil {
		out = append(out, "horario")
	}
	if d.Kind == nil {
		out = append(out, "tipo")
	}
	return out
}

// DraftOf copies an appointment's fields into a fully populated draft.
func DraftOf(a Appointment) Draft {
	return Draft{
		Name:            &a.Name,
		BirthDate:       &a.BirthDate,
		AppointmentDate: &a.AppointmentDate,
		Time:            &a.Time,
		Kind:            &a.Kind,
	}
}

func (d Draft) apply(a *Appointment) {
	a.Name = *d.Name
	a.BirthDate = *d.BirthDate
	a.AppointmentDate = *d.AppointmentDate
	a.Time = *d.Time
	a.Kind = *d.Kind
}
