package log

// Estimator and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "GroupbyCategoryForecaster".
	ModelNameKey = "model.name"

	// EstimatorIDKey is a per-instance identifier (a UUID assigned at construction).
	EstimatorIDKey = "estimator.id"

	// OperationKey is the operation being performed: "fit", "predict", "update", ...
	OperationKey = "ml.operation"

	// ComponentKey names the package performing the operation.
	ComponentKey = "ml.component"
)

// Data shape.
const (
	// SamplesKey is the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of columns.
	FeaturesKey = "data.features"

	// InstancesKey is the number of distinct series instances in a panel.
	InstancesKey = "data.instances"
)

// Forecast routing.
const (
	// CategoryKey is the category label a sub-panel was routed by.
	CategoryKey = "forecast.category"

	// GroupKey is the hierarchy prefix a clone was fitted on.
	GroupKey = "forecast.group"

	// FallbackKey is true when the fallback forecaster served a category.
	FallbackKey = "forecast.fallback"

	// HorizonKey is the number of forecast steps.
	HorizonKey = "forecast.horizon"
)

// DurationMsKey is the wall time of an operation in milliseconds.
const DurationMsKey = "perf.duration_ms"

// ErrorCodeKey is a machine-readable error code.
const ErrorCodeKey = "error.code"

// Standard values.
const (
	OperationFit             = "fit"
	OperationPredict         = "predict"
	OperationPredictInterval = "predict_interval"
	OperationPredictProba    = "predict_proba"
	OperationUpdate          = "update"
	OperationScore           = "score"

	ErrorMissingCategory = "MISSING_CATEGORY"
)
