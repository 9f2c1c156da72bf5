package rpc

import (
	"github.com/xenocomm/coordinator/internal/emergence"
	"github.com/xenocomm/coordinator/internal/model"
)

// registerEmergenceOps wires spec.md §6's "Emergence" group onto
// emergence.Engine.
func registerEmergenceOps(r *Registry, em *emergence.Engine) {
	r.register("propose_protocol_variant", func(args map[string]interface{}) (interface{}, error) {
		return em.ProposeVariant(optString(args, "description"), optMap(args, "changes")), nil
	})

	r.register("start_variant_testing", func(args map[string]interface{}) (interface{}, error) {
		variantID, err := reqString(args, "variant_id")
		if err != nil {
			return nil, err
		}
		return em.StartTesting(variantID)
	})

	r.register("start_canary_deployment", func(args map[string]interface{}) (interface{}, error) {
		variantID, err := reqString(args, "variant_id")
		if err != nil {
			return nil, err
		}
		return em.StartCanary(variantID, optFloatPtr(args, "initial_percentage"))
	})

	r.register("ramp_canary", func(args map[string]interface{}) (interface{}, error) {
		variantID, err := reqString(args, "variant_id")
		if err != nil {
			return nil, err
		}
		return em.RampCanary(variantID, optBool(args, "force", false))
	})

	r.register("track_variant_performance", func(args map[string]interface{}) (interface{}, error) {
		variantID, err := reqString(args, "variant_id")
		if err != nil {
			return nil, err
		}
		var metrics model.PerformanceMetrics
		if err := decodeInto(args["metrics"], &metrics); err != nil {
			return nil, err
		}
		return em.TrackPerformance(variantID, metrics)
	})

	r.register("get_variant_status", func(args map[string]interface{}) (interface{}, error) {
		variantID, err := reqString(args, "variant_id")
		if err != nil {
			return nil, err
		}
		return em.GetVariantStatus(variantID)
	})

	r.register("rollback_variant", func(args map[string]interface{}) (interface{}, error) {
		variantID, err := reqString(args, "variant_id")
		if err != nil {
			return nil, err
		}
		reason := emergence.RollbackReason(optString(args, "reason"))
		if reason == "" {
			reason = emergence.ReasonManual
		}
		return em.Rollback(variantID, reason)
	})

	r.register("list_variants", func(args map[string]interface{}) (interface{}, error) {
		var status *model.VariantStatus
		if s := optString(args, "status"); s != "" {
			v := model.VariantStatus(s)
			status = &v
		}
		variants := em.ListVariants(status)
		if tag := optString(args, "tag"); tag != "" {
			filtered := make([]*model.ProtocolVariant, 0, len(variants))
			for _, v := range variants {
				for _, t := range v.Tags {
					if t == tag {
						filtered = append(filtered, v)
						break
					}
				}
			}
			variants = filtered
		}
		return map[string]interface{}{"variants": variants}, nil
	})

	r.register("get_canary_status", func(args map[string]interface{}) (interface{}, error) {
		return em.GetCanaryStatus(), nil
	})

	r.register("analyze_variant_trend", func(args map[string]interface{}) (interface{}, error) {
		variantID, err := reqString(args, "variant_id")
		if err != nil {
			return nil, err
		}
		metric := optString(args, "metric")
		if metric == "" {
			metric = "success_rate"
		}
		trend, err := em.AnalyzeTrend(variantID, metric)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"trend": trend}, nil
	})

	r.register("detect_variant_anomaly", func(args map[string]interface{}) (interface{}, error) {
		variantID, err := reqString(args, "variant_id")
		if err != nil {
			return nil, err
		}
		metric := optString(args, "metric")
		if metric == "" {
			metric = "success_rate"
		}
		anomalous, err := em.DetectAnomaly(variantID, metric)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"anomalous": anomalous}, nil
	})

	r.register("start_ab_experiment", func(args map[string]interface{}) (interface{}, error) {
		controlID, err := reqString(args, "control_variant_id")
		if err != nil {
			return nil, err
		}
		treatmentID, err := reqString(args, "treatment_variant_id")
		if err != nil {
			return nil, err
		}
		return em.StartExperiment(controlID, treatmentID, optFloat(args, "traffic_split", 0.5))
	})

	r.register("record_ab_experiment_metrics", func(args map[string]interface{}) (interface{}, error) {
		experimentID, err := reqString(args, "experiment_id")
		if err != nil {
			return nil, err
		}
		variantID, err := reqString(args, "variant_id")
		if err != nil {
			return nil, err
		}
		var metrics model.PerformanceMetrics
		if err := decodeInto(args["metrics"], &metrics); err != nil {
			return nil, err
		}
		return em.RecordExperimentMetrics(experimentID, variantID, metrics)
	})

	r.register("get_ab_experiment_status", func(args map[string]interface{}) (interface{}, error) {
		experimentID, err := reqString(args, "experiment_id")
		if err != nil {
			return nil, err
		}
		return em.GetExperimentStatus(experimentID)
	})

	r.register("predict_variant_success", func(args map[string]interface{}) (interface{}, error) {
		prediction := em.PredictSuccess(optMap(args, "changes"), optStringSlice(args, "tags"))
		return map[string]interface{}{"predicted_success_rate": prediction}, nil
	})

	r.register("get_emergence_learning_insights", func(args map[string]interface{}) (interface{}, error) {
		return em.GetLearningInsights(), nil
	})
}
