package standardize

import "github.com/bitstreamfno/orchestrator/internal/domain"

// Extract decodes a worker's raw result.details map into the
// provider-appropriate Raw variant and runs its ExtractCanonical. This is
// the Standardizer the dispatcher is wired with in production; tests wire
// their own stub (spec §4.5).
func Extract(provider domain.Provider, result map[string]any) *Canonical {
	details, _ := result["details"].(map[string]any)
	if details == nil {
		details = map[string]any{}
	}

	var c Canonical
	switch provider {
	case domain.ProviderMFN:
		c = decodeMFN(details).ExtractCanonical()
	case domain.ProviderOSN:
		c = decodeOSN(details).ExtractCanonical()
	case domain.ProviderOctotel:
		c = decodeOctotel(details).ExtractCanonical()
	case domain.ProviderEvotel:
		c = decodeEvotel(details).ExtractCanonical()
	default:
		c = Canonical{Extra: newExtra()}
	}
	return &c
}

func str(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func boolean(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func obj(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func decodeMFN(d map[string]any) MfnRaw {
	return MfnRaw{
		ServiceStatusType:              str(d, "service_status_type"),
		ServiceFound:                   boolean(d, "service_found"),
		HasActiveService:               boolean(d, "has_active_service"),
		IsActive:                       boolean(d, "is_active"),
		PendingCeaseOrder:              boolean(d, "pending_cease_order"),
		CancellationImplementationDate: str(d, "cancellation_implementation_date"),
		CancellationCapturedID:         str(d, "cancellation_captured_id"),
		CustomerData:                   obj(d, "customer_data"),
		LegacyCustomerData:             obj(d, "legacy_customer_data"),
		LegacyCancellationData:         obj(d, "legacy_cancellation_data"),
	}
}

func decodeOSN(d map[string]any) OsnRaw {
	raw, _ := d["order_data"].([]any)
	orders := make([]OsnOrder, 0, len(raw))
	for _, entry := range raw {
		o, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		orders = append(orders, OsnOrder{
			OrderNumber:     str(o, "orderNumber"),
			Type:            str(o, "type"),
			OrderStatus:     str(o, "orderStatus"),
			DateImplemented: str(o, "dateImplemented"),
		})
	}
	return OsnRaw{
		OrderData:         orders,
		ServiceAddress:    str(d, "service_address"),
		ServiceCircuitNum: str(d, "service_circuit_num"),
		CustomerDetails:   obj(d, "customer_details"),
	}
}

func decodeOctotel(d map[string]any) OctotelRaw {
	raw, _ := d["services"].([]any)
	services := make([]OctotelService, 0, len(raw))
	for _, entry := range raw {
		s, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		services = append(services, OctotelService{HasPendingCancellation: boolean(s, "has_pending_cancellation")})
	}
	return OctotelRaw{
		Found:                   boolean(d, "found"),
		CustomerName:            str(d, "customer_name"),
		ServiceType:             str(d, "service_type"),
		PendingRequestsDetected: boolean(d, "pending_requests_detected"),
		Services:                services,
		HasPendingCancellation:  boolean(d, "has_pending_cancellation"),
		ChangeRequestAvailable:  boolean(d, "change_request_available"),
		ServiceStatus:           str(d, "service_status"),
		CancellationSubmitted:   boolean(d, "cancellation_submitted"),
		ReleaseReference:        str(d, "release_reference"),
	}
}

func decodeEvotel(d map[string]any) EvotelRaw {
	ont := obj(d, "ont_details")
	return EvotelRaw{
		ServiceSummaryPresent:   boolean(d, "service_summary_present"),
		WorkOrderSummaryPresent: boolean(d, "work_order_summary_present"),
		ComprehensivePresent:    boolean(d, "comprehensive_present"),
		ServiceStatus:           str(d, "service_status"),
		WorkOrderStatus:         str(d, "work_order_status"),
		DetailedServiceStatus:   str(d, "detailed_service_status"),
		DetailedWorkOrderStatus: str(d, "detailed_work_order_status"),
		ISPProvisioned:          str(d, "isp_provisioned"),
		ScheduledTime:           str(d, "scheduled_time"),
		PrimaryWorkOrderReference: str(d, "primary_work_order_reference"),
		CustomerName:            str(d, "customer_name"),
		CustomerEmail:           str(d, "customer_email"),
		VerificationStatus:      str(ont, "verification"),
	}
}
