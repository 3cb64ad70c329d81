package repository

import gorp "github.com/go-gorp/gorp/v3"

// RegisterTables adds every table this module owns to dbMap, mirroring
// the teacher's own sa/database.go initTables: one AddTableWithName
// call per row model, keyed on its string primary key.
func RegisterTables(dbMap *gorp.DbMap) {
	dbMap.AddTableWithName(certificateModel{}, "certificates").SetKeys(false, "ID")
	dbMap.AddTableWithName(crlModel{}, "crls").SetKeys(false, "ID")
	dbMap.AddTableWithName(masterListModel{}, "master_lists").SetKeys(false, "ID")
	dbMap.AddTableWithName(uploadModel{}, "uploads").SetKeys(false, "ID")
	dbMap.AddTableWithName(validationResultModel{}, "validation_results").SetKeys(false, "ID")
	dbMap.AddTableWithName(reconciliationRunModel{}, "reconciliation_runs").SetKeys(false, "ID")
	dbMap.AddTableWithName(reconciliationLogEntryModel{}, "reconciliation_log_entries").SetKeys(false, "ID")
	dbMap.AddTableWithName(syncStatusSnapshotModel{}, "sync_status_snapshots").SetKeys(false, "ID")
	dbMap.AddTableWithName(paVerificationModel{}, "pa_verifications").SetKeys(false, "ID")
	dbMap.AddTableWithName(dataGroupCheckModel{}, "data_group_checks").SetKeys(false, "ID")
	dbMap.AddTableWithName(catalogNotificationModel{}, "catalog_notifications").SetKeys(false, "ID")
}
