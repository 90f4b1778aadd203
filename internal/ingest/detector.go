package ingest

import "github.com/NZSopa/orderdhash-sub001/internal/models"

// Report is the advisory anomaly summary for one closed batch. It never
// blocks ingestion.
type Report struct {
	Total               int                     `json:"total"`
	HighValue           HighValueGroup          `json:"high_value"`
	DuplicateRefs       DuplicateRefGroup       `json:"duplicate_refs"`
	DuplicateConsignees DuplicateConsigneeGroup `json:"duplicate_consignees"`
}

// HighValueGroup lists lines whose quantity * unit_value exceeds the
// configured threshold.
type HighValueGroup struct {
	Count  int            `json:"count"`
	Orders []models.Order `json:"orders"`
}

// DuplicateRefGroup lists reference numbers that appear on more than one
// line, with every member line including the first occurrence.
type DuplicateRefGroup struct {
	Count  int            `json:"count"`
	Refs   []string       `json:"refs"`
	Orders []models.Order `json:"orders"`
}

// ConsigneeGroup is one consignee name appearing on multiple lines.
type ConsigneeGroup struct {
	Name   string         `json:"name"`
	Count  int            `json:"count"`
	Orders []models.Order `json:"orders"`
}

// DuplicateConsigneeGroup lists consignees with more than one line.
type DuplicateConsigneeGroup struct {
	Count      int              `json:"count"`
	Consignees []ConsigneeGroup `json:"consignees"`
	Orders     []models.Order   `json:"orders"`
}

// Detect runs the anomaly checks over a closed batch of orders. The
// threshold is the high-value cutoff in the source currency unit.
func Detect(orders []models.Order, threshold float64) Report {
	report := Report{Total: len(orders)}

	for _, o := range orders {
		if float64(o.Quantity)*o.UnitValue > threshold {
			report.HighValue.Orders = append(report.HighValue.Orders, o)
		}
	}
	report.HighValue.Count = len(report.HighValue.Orders)

	byRef := make(map[string][]models.Order)
	var refOrder []string
	for _, o := range orders {
		if _, seen := byRef[o.ReferenceNo]; !seen {
			refOrder = append(refOrder, o.ReferenceNo)
		}
		byRef[o.ReferenceNo] = append(byRef[o.ReferenceNo], o)
	}
	for _, ref := range refOrder {
		group := byRef[ref]
		if len(group) > 1 {
			report.DuplicateRefs.Refs = append(report.DuplicateRefs.Refs, ref)
			report.DuplicateRefs.Orders = append(report.DuplicateRefs.Orders, group...)
		}
	}
	report.DuplicateRefs.Count = len(report.DuplicateRefs.Refs)

	byConsignee := make(map[string][]models.Order)
	var nameOrder []string
	for _, o := range orders {
		// Lines with no consignee name are not the same consignee.
		if o.ConsigneeName == "" {
			continue
		}
		if _, seen := byConsignee[o.ConsigneeName]; !seen {
			nameOrder = append(nameOrder, o.ConsigneeName)
		}
		byConsignee[o.ConsigneeName] = append(byConsignee[o.ConsigneeName], o)
	}
	for _, name := range nameOrder {
		group := byConsignee[name]
		if len(group) > 1 {
			report.DuplicateConsignees.Consignees = append(report.DuplicateConsignees.Consignees, ConsigneeGroup{
				Name:   name,
				Count:  len(group),
				Orders: group,
			})
			report.DuplicateConsignees.Orders = append(report.DuplicateConsignees.Orders, group...)
		}
	}
	report.DuplicateConsignees.Count = len(report.DuplicateConsignees.Consignees)

	return report
}
