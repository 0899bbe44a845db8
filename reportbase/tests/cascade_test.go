package tests

import (
	"construction_reports/reportbase/schema"
	"testing"
)

func countRows(t *testing.T, env *testEnv, model interface{}, query string, args ...interface{}) int64 {
	var count int64
	result := env.db.Model(model).Where(query, args...).Count(&count)
	if result.Error != nil {
		t.Fatal(result.Error)
	}
	return count
}

func createFullReport(t *testing.T, admin client, objectId int64, itrIds, workerIds, equipmentIds []int64) int64 {
	reportId, err := admin.createReport(reportArgs{ObjectId: objectId, Shift: "morning", WorkCategory: "Общестроительные работы"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := admin.setCrew(reportId, itrIds); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.addWorkers(reportId, workerIds); err != nil {
		t.Fatal(err)
	}
	entries := make([]equipmentEntry, 0, len(equipmentIds))
	for _, id := range equipmentIds {
		entries = append(entries, equipmentEntry{EquipmentId: id, Quantity: 2})
	}
	if _, err := admin.setEquipment(reportId, entries); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.addPhotos(reportId, "", map[string][]byte{"site.jpg": []byte("img")}); err != nil {
		t.Fatal(err)
	}
	return reportId
}

func TestDeleteReportCascade(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	objectId, itrIds, workerIds, equipmentIds := setupRoster(t, admin)
	reportId := createFullReport(t, admin, objectId, itrIds, workerIds, equipmentIds)

	deleted, err := admin.deleteReport(reportId)
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("delete should report the row as removed")
	}

	for model, name := range map[interface{}]string{
		&schema.ReportItr{}:       "report_itr",
		&schema.ReportWorker{}:    "report_workers",
		&schema.ReportEquipment{}: "report_equipment",
		&schema.ReportPhoto{}:     "report_photos",
	} {
		if n := countRows(t, env, model, "report_id = ?", reportId); n != 0 {
			t.Fatalf("%v rows should be removed with the report, found %d", name, n)
		}
	}
	if n := countRows(t, env, &schema.Report{}, "id = ?", reportId); n != 0 {
		t.Fatal("report row should be removed")
	}

	// roster entries referenced by the report are untouched
	if n := countRows(t, env, &schema.Itr{}, "1 = 1"); n != int64(len(itrIds)) {
		t.Fatalf("itr roster should survive report deletion, found %d rows", n)
	}

	deleted, err = admin.deleteReport(reportId)
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Fatal("second delete should report nothing removed")
	}
}

func TestDeleteRosterEntryClearsLinks(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	objectId, itrIds, workerIds, equipmentIds := setupRoster(t, admin)
	reportId := createFullReport(t, admin, objectId, itrIds, workerIds, equipmentIds)

	deleted, err := admin.deleteItr(itrIds[0])
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("itr delete should report the row as removed")
	}

	if n := countRows(t, env, &schema.ReportItr{}, "itr_id = ?", itrIds[0]); n != 0 {
		t.Fatal("report links should be cleared when the itr is deleted")
	}

	info, err := admin.reportInfo(reportId)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Crew) != len(itrIds)-1 {
		t.Fatalf("report crew should shrink after itr deletion %v", info.Crew)
	}
}

func TestDeleteObjectCascade(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	objectId, itrIds, workerIds, equipmentIds := setupRoster(t, admin)
	otherObjectId, err := admin.createObject("South Site")
	if err != nil {
		t.Fatal(err)
	}

	reportId := createFullReport(t, admin, objectId, itrIds, workerIds, equipmentIds)
	otherReportId, err := admin.createReport(reportArgs{ObjectId: otherObjectId, Shift: "morning", WorkCategory: "Общестроительные работы"})
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := admin.deleteObject(objectId)
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("object delete should report the row as removed")
	}

	if n := countRows(t, env, &schema.Report{}, "id = ?", reportId); n != 0 {
		t.Fatal("reports should be cascaded with their object")
	}
	if n := countRows(t, env, &schema.ReportItr{}, "report_id = ?", reportId); n != 0 {
		t.Fatal("report links should be cascaded with their object")
	}
	if _, err := admin.reportInfo(otherReportId); err != nil {
		t.Fatalf("reports for other objects must survive: %v", err)
	}

	deleted, err = admin.deleteObject(objectId)
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Fatal("second object delete should report nothing removed")
	}
}

func TestDeleteClientCascade(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	exclusiveObject, err := admin.createObject("exclusive site")
	if err != nil {
		t.Fatal(err)
	}
	sharedObject, err := admin.createObject("shared site")
	if err != nil {
		t.Fatal(err)
	}

	newClient, err := admin.createClient("Orlov O.O.", "StroyInvest", "orlov@mail.com")
	if err != nil {
		t.Fatal(err)
	}
	otherClient, err := admin.createClient("Volkov V.V.", "MonolitStroy", "")
	if err != nil {
		t.Fatal(err)
	}

	for _, objectId := range []int64{exclusiveObject, sharedObject} {
		if err := admin.assignObject(newClient.ClientId, objectId); err != nil {
			t.Fatal(err)
		}
	}
	if err := admin.assignObject(otherClient.ClientId, sharedObject); err != nil {
		t.Fatal(err)
	}

	var reportIds []int64
	for _, objectId := range []int64{exclusiveObject, sharedObject} {
		reportId, err := admin.createReport(reportArgs{ObjectId: objectId, Shift: "morning", WorkCategory: "Общестроительные работы"})
		if err != nil {
			t.Fatal(err)
		}
		reportIds = append(reportIds, reportId)
	}

	deleted, err := admin.deleteClient(newClient.ClientId)
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("client delete should report the row as removed")
	}

	// reports for the exclusively assigned object are cascaded, the object row survives
	if n := countRows(t, env, &schema.Report{}, "id = ?", reportIds[0]); n != 0 {
		t.Fatal("reports for exclusive objects should be cascaded")
	}
	if n := countRows(t, env, &schema.Object{}, "id = ?", exclusiveObject); n != 1 {
		t.Fatal("object rows should survive client deletion")
	}

	// the shared object keeps its reports and its other assignment
	if n := countRows(t, env, &schema.Report{}, "id = ?", reportIds[1]); n != 1 {
		t.Fatal("reports for shared objects must survive")
	}
	if n := countRows(t, env, &schema.ClientObject{}, "client_id = ?", otherClient.ClientId); n != 1 {
		t.Fatal("other client assignments must survive")
	}

	// client row and its login are both gone
	if n := countRows(t, env, &schema.Client{}, "id = ?", newClient.ClientId); n != 0 {
		t.Fatal("client row should be removed")
	}
	if n := countRows(t, env, &schema.User{}, "id = ?", newClient.UserId); n != 0 {
		t.Fatal("client user should be removed")
	}

	deleted, err = admin.deleteClient(newClient.ClientId)
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Fatal("second client delete should report nothing removed")
	}
}

func TestAccessCodeOnboarding(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	created, err := admin.createClient("Orlov O.O.", "StroyInvest", "")
	if err != nil {
		t.Fatal(err)
	}
	if created.AccessCode == "" {
		t.Fatal("new client should receive an access code")
	}

	c := env.newClient()
	telegramId := int64(771234)

	if err := c.telegramLogin(telegramId); err == nil {
		t.Fatal("telegram login should fail before the code is redeemed")
	}
	if err := c.redeemAccessCode("wrong-code", telegramId, "orlov"); err == nil {
		t.Fatal("redemption should fail with wrong code")
	}

	if err := c.redeemAccessCode(created.AccessCode, telegramId, "orlov"); err != nil {
		t.Fatal(err)
	}
	if c.userId != created.UserId {
		t.Fatalf("redeemed login should map to the client user, got %v", c.userId)
	}

	info, err := c.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Role != "client" || info.TelegramId == nil || *info.TelegramId != telegramId {
		t.Fatalf("invalid client user info %v", info)
	}

	// codes are single use
	other := env.newClient()
	if err := other.redeemAccessCode(created.AccessCode, 99999, "intruder"); err == nil {
		t.Fatal("second redemption of the same code should fail")
	}

	// but the bound telegram id can log in again
	again := env.newClient()
	if err := again.telegramLogin(telegramId); err != nil {
		t.Fatal(err)
	}
	if again.userId != created.UserId {
		t.Fatalf("telegram login should map to user %v, got %v", created.UserId, again.userId)
	}
}
