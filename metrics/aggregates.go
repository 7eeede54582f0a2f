package metrics

// Aggregates is a point-in-time snapshot of every derived metric. It is recomputed
// from accumulator state on each call to Preprocessor.Aggregates.
type Aggregates struct {
	SessionDurationS float64 `json:"session_duration_s"`

	PowerW30sWindowAverage float64 `json:"power_w_30s_window_average"`
	PowerW60sWindowAverage float64 `json:"power_w_60s_window_average"`
	PowerWSessionAverage   float64 `json:"power_w_session_average"`

	PaceMinutesPerKm30sWindowAverage float64 `json:"pace_min_per_km_30s_window_average"`
	PaceMinutesPerKm60sWindowAverage float64 `json:"pace_min_per_km_60s_window_average"`
	PaceMinutesPerKmSessionAverage   float64 `json:"pace_min_per_km_session_average"`
	PaceMinutesPerKm60sRateOfChange  float64 `json:"pace_min_per_km_60s_rate_of_change"`

	HeartRateBPM30sWindowAverage float64 `json:"heart_rate_bpm_30s_window_average"`
	HeartRateBPM60sWindowAverage float64 `json:"heart_rate_bpm_60s_window_average"`
	HeartRateBPMSessionAverage   float64 `json:"heart_rate_bpm_session_average"`
	HeartRateBPM60sRateOfChange  float64 `json:"heart_rate_bpm_60s_rate_of_change"`
	HeartRateBPMSessionMin       float64 `json:"heart_rate_bpm_session_min"`
	HeartRateBPMSessionMax       float64 `json:"heart_rate_bpm_session_max"`

	CadenceSPM30sWindow float64 `json:"cadence_spm_30s_window"`
	CadenceSPM60sWindow float64 `json:"cadence_spm_60s_window"`

	DistanceM        float64 `json:"distance_m"`
	StrideLengthM    float64 `json:"stride_length_m"`
	ActiveEnergyKcal float64 `json:"active_energy_kcal"`

	ElevationGainSessionM    float64 `json:"elevation_gain_session_m"`
	ElevationGain30sWindowM  float64 `json:"elevation_gain_30s_window_m"`
	GradePercentage10sWindow float64 `json:"grade_percentage_10s_window"`

	GradeAdjustedPace60sWindowAverage float64 `json:"grade_adjusted_pace_60s_window_average"`
}
