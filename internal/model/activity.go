package model

import "time"

// ActivityKind è il tipo di intervento pianificato a fronte di un'anomalia.
type ActivityKind string

const (
	KindTemperatureCheck  ActivityKind = "temperature_check"
	KindIrrigation        ActivityKind = "irrigation"
	KindSoilMoistureCheck ActivityKind = "soil_moisture_check"
	KindLuminosityCheck   ActivityKind = "luminosity_check"
)

// Description restituisce il testo dell'attività mostrato all'operatore.
func (k ActivityKind) Description(zone string) string {
	switch k {
	case KindTemperatureCheck:
		return "Verifica sensori temperatura in zona " + zone
	case KindIrrigation:
		return "Irrigazione zona " + zone
	case KindSoilMoistureCheck:
		return "Controllo umidità suolo zona " + zone
	case KindLuminosityCheck:
		return "Verifica luminosità zona " + zone
	}
	return string(k)
}

type ActivityStatus string

const (
	StatusPending   ActivityStatus = "pending"
	StatusCompleted ActivityStatus = "completed"
)

// Activity è un intervento pianificato derivato da un'anomalia.
// La chiave di deduplica (sensor_id, scheduled_at, kind) è unica nello store
// indipendentemente dallo status; l'unica transizione ammessa è
// pending -> completed, via conferma esplicita dell'operatore.
type Activity struct {
	ID              string         `json:"id"`
	SourceReadingID int64          `json:"source_reading_id"`
	Kind            ActivityKind   `json:"kind"`
	Description     string         `json:"description"`
	Zone            string         `json:"zone"`
	SensorID        string         `json:"sensor_id"`
	Priority        string         `json:"priority"`
	AnomalyAt       time.Time      `json:"anomaly_at"`
	ScheduledAt     time.Time      `json:"scheduled_at"`
	Status          ActivityStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}
