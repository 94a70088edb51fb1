package domain

import (
	"fmt"

	"routeopt/pkg/apperror"
)

// ValidateOptimizeRequest проверяет запрос и возвращает пофилдовый список
// ошибок. Запрос с ошибками к решателю не допускается.
func ValidateOptimizeRequest(req *OptimizeRequest) *apperror.ValidationErrors {
	verrs := apperror.NewValidationErrors()
	if req == nil {
		verrs.Add(apperror.ErrNilInput)
		return verrs
	}

	if len(req.Locations) == 0 {
		verrs.AddErrorWithField(apperror.CodeInvalidInput, "at least one location is required", "locations")
	}
	if len(req.Vehicles) == 0 {
		verrs.AddErrorWithField(apperror.CodeInvalidInput, "at least one vehicle is required", "vehicles")
	}

	locationIDs := validateLocations(req.Locations, verrs)
	validateVehicles(req.Vehicles, locationIDs, verrs)
	validateDeliveries(req.Deliveries, req.Locations, locationIDs, verrs)

	if req.TimeLimitSeconds < 0 {
		verrs.AddErrorWithField(apperror.CodeInvalidInput, "time_limit_seconds must be non-negative", "time_limit_seconds")
	}

	return verrs
}

// ValidateRerouteRequest проверяет запрос на перестроение
func ValidateRerouteRequest(req *RerouteRequest) *apperror.ValidationErrors {
	verrs := apperror.NewValidationErrors()
	if req == nil {
		verrs.Add(apperror.ErrNilInput)
		return verrs
	}

	switch req.RerouteType {
	case RerouteTraffic, RerouteDelay, RerouteRoadblock:
	default:
		verrs.AddErrorWithField(apperror.CodeInvalidInput,
			fmt.Sprintf("reroute_type must be one of traffic, delay, roadblock, got %q", req.RerouteType),
			"reroute_type")
	}

	if req.CurrentSolution == nil {
		verrs.AddErrorWithField(apperror.CodeNilInput, "current_solution is required", "current_solution")
	}

	base := &OptimizeRequest{
		Locations:  req.Locations,
		Vehicles:   req.Vehicles,
		Deliveries: req.OriginalDeliveries,
	}
	verrs.Merge(ValidateOptimizeRequest(base))

	if req.RerouteType == RerouteDelay && req.DelayMinutes < 0 {
		verrs.AddErrorWithField(apperror.CodeInvalidInput, "delay_minutes must be non-negative", "delay_minutes")
	}
	if req.RerouteType == RerouteRoadblock {
		n := len(req.Locations)
		for i, seg := range req.BlockedSegments {
			if seg.From < 0 || seg.From >= n || seg.To < 0 || seg.To >= n {
				verrs.AddErrorWithField(apperror.CodeInvalidInput,
					fmt.Sprintf("blocked segment (%d,%d) is out of matrix range", seg.From, seg.To),
					fmt.Sprintf("blocked_segments[%d]", i))
			}
		}
	}

	return verrs
}

func validateLocations(locations []Location, verrs *apperror.ValidationErrors) map[string]bool {
	ids := make(map[string]bool, len(locations))

	for i, loc := range locations {
		field := fmt.Sprintf("locations[%d]", i)

		if loc.ID == "" {
			verrs.AddErrorWithField(apperror.CodeInvalidLocation, "location id is required", field+".id")
			continue
		}
		if ids[loc.ID] {
			verrs.AddErrorWithField(apperror.CodeDuplicateID,
				fmt.Sprintf("duplicate location id %q", loc.ID), field+".id")
		}
		ids[loc.ID] = true

		if loc.Latitude < -90 || loc.Latitude > 90 {
			verrs.AddErrorWithField(apperror.CodeInvalidLocation,
				fmt.Sprintf("latitude %v is out of [-90, 90]", loc.Latitude), field+".latitude")
		}
		if loc.Longitude < -180 || loc.Longitude > 180 {
			verrs.AddErrorWithField(apperror.CodeInvalidLocation,
				fmt.Sprintf("longitude %v is out of [-180, 180]", loc.Longitude), field+".longitude")
		}

		if (loc.TimeWindowStart == nil) != (loc.TimeWindowEnd == nil) {
			verrs.AddErrorWithField(apperror.CodeInvalidTimeWindow,
				"time window requires both start and end", field)
		}
		if loc.HasTimeWindow() && *loc.TimeWindowStart > *loc.TimeWindowEnd {
			verrs.AddErrorWithField(apperror.CodeInvalidTimeWindow,
				"time window start must not exceed end", field)
		}
		if loc.ServiceTime < 0 {
			verrs.AddErrorWithField(apperror.CodeInvalidLocation,
				"service_time must be non-negative", field+".service_time")
		}
	}

	return ids
}

func validateVehicles(vehicles []Vehicle, locationIDs map[string]bool, verrs *apperror.ValidationErrors) {
	seen := make(map[string]bool, len(vehicles))

	for i, v := range vehicles {
		field := fmt.Sprintf("vehicles[%d]", i)

		if v.ID == "" {
			verrs.AddErrorWithField(apperror.CodeInvalidVehicle, "vehicle id is required", field+".id")
			continue
		}
		if seen[v.ID] {
			verrs.AddErrorWithField(apperror.CodeDuplicateID,
				fmt.Sprintf("duplicate vehicle id %q", v.ID), field+".id")
		}
		seen[v.ID] = true

		if v.Capacity < 0 {
			verrs.AddErrorWithField(apperror.CodeInvalidVehicle,
				"capacity must be non-negative", field+".capacity")
		}
		if v.MaxDistance < 0 {
			verrs.AddErrorWithField(apperror.CodeInvalidVehicle,
				"max_distance must be non-negative", field+".max_distance")
		}
		if v.StartLocationID != "" && !locationIDs[v.StartLocationID] {
			verrs.AddErrorWithField(apperror.CodeUnknownLocation,
				fmt.Sprintf("start location %q is not in the request", v.StartLocationID),
				field+".start_location_id")
		}
		if v.EndLocationID != "" && !locationIDs[v.EndLocationID] {
			verrs.AddErrorWithField(apperror.CodeUnknownLocation,
				fmt.Sprintf("end location %q is not in the request", v.EndLocationID),
				field+".end_location_id")
		}
	}
}

func validateDeliveries(deliveries []Delivery, locations []Location, locationIDs map[string]bool, verrs *apperror.ValidationErrors) {
	depots := make(map[string]bool)
	for _, loc := range locations {
		if loc.IsDepot {
			depots[loc.ID] = true
		}
	}

	seen := make(map[string]bool, len(deliveries))
	for i, d := range deliveries {
		field := fmt.Sprintf("deliveries[%d]", i)

		if d.ID == "" {
			verrs.AddErrorWithField(apperror.CodeInvalidDelivery, "delivery id is required", field+".id")
			continue
		}
		if seen[d.ID] {
			verrs.AddErrorWithField(apperror.CodeDuplicateID,
				fmt.Sprintf("duplicate delivery id %q", d.ID), field+".id")
		}
		seen[d.ID] = true

		if d.Demand < 0 {
			verrs.AddErrorWithField(apperror.CodeInvalidDelivery,
				"demand must be non-negative", field+".demand")
		}
		if !locationIDs[d.LocationID] {
			verrs.AddErrorWithField(apperror.CodeUnknownLocation,
				fmt.Sprintf("delivery location %q is not in the request", d.LocationID),
				field+".location_id")
		} else if depots[d.LocationID] {
			verrs.AddErrorWithField(apperror.CodeInvalidDelivery,
				fmt.Sprintf("delivery location %q must not be a depot", d.LocationID),
				field+".location_id")
		}
	}
}
