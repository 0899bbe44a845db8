package tests

import (
	"slices"
	"testing"
)

func setupRoster(t *testing.T, admin client) (objectId int64, itrIds, workerIds, equipmentIds []int64) {
	var err error
	objectId, err = admin.createObject("North Site")
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"Ivanov I.I.", "Petrov P.P.", "Sidorov S.S."} {
		id, err := admin.createItr(name)
		if err != nil {
			t.Fatal(err)
		}
		itrIds = append(itrIds, id)
	}

	for _, name := range []string{"Smirnov A.A.", "Kuznetsov B.B."} {
		id, err := admin.createWorker(name, "mason")
		if err != nil {
			t.Fatal(err)
		}
		workerIds = append(workerIds, id)
	}

	for _, name := range []string{"excavator", "crane"} {
		id, err := admin.createEquipment(name)
		if err != nil {
			t.Fatal(err)
		}
		equipmentIds = append(equipmentIds, id)
	}

	return
}

func TestCreateReportValidation(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	objectId, err := admin.createObject("site")
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.createReport(reportArgs{ObjectId: objectId, Shift: "night", WorkCategory: "Общестроительные работы"})
	if err == nil {
		t.Fatal("create should fail with invalid shift")
	}

	_, err = admin.createReport(reportArgs{ObjectId: objectId, Shift: "morning", WorkCategory: "bad category"})
	if err == nil {
		t.Fatal("create should fail with invalid work category")
	}

	_, err = admin.createReport(reportArgs{ObjectId: objectId + 100, Shift: "morning", WorkCategory: "Общестроительные работы"})
	if err == nil {
		t.Fatal("create should fail with unknown object")
	}

	reportId, err := admin.createReport(reportArgs{ObjectId: objectId, Shift: "morning", WorkCategory: "Общестроительные работы"})
	if err != nil {
		t.Fatal(err)
	}

	info, err := admin.reportInfo(reportId)
	if err != nil {
		t.Fatal(err)
	}
	if info.ObjectId != objectId || info.Status != "draft" || info.Shift != "morning" {
		t.Fatalf("invalid report info %v", info)
	}
	if len(info.Crew) != 0 || len(info.Workers) != 0 || len(info.Equipment) != 0 || len(info.Photos) != 0 {
		t.Fatalf("new draft should have no associations %v", info)
	}
}

func TestCrewReplacement(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	objectId, itrIds, _, _ := setupRoster(t, admin)

	reportId, err := admin.createReport(reportArgs{ObjectId: objectId, Shift: "morning", WorkCategory: "Общестроительные работы"})
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.setCrew(reportId, []int64{itrIds[0], itrIds[1], 9999})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.Applied, []int64{itrIds[0], itrIds[1]}) || !slices.Equal(res.Skipped, []int64{9999}) {
		t.Fatalf("unexpected crew result %v", res)
	}

	// resubmitting a different selection must replace the old one, not extend it
	res, err = admin.setCrew(reportId, []int64{itrIds[2]})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.Applied, []int64{itrIds[2]}) || len(res.Skipped) != 0 {
		t.Fatalf("unexpected crew result %v", res)
	}

	info, err := admin.reportInfo(reportId)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Crew) != 1 || info.Crew[0].Id != itrIds[2] {
		t.Fatalf("crew should contain only the last selection %v", info.Crew)
	}
}

func TestWorkerMerge(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	objectId, _, workerIds, _ := setupRoster(t, admin)

	reportId, err := admin.createReport(reportArgs{ObjectId: objectId, Shift: "evening", WorkCategory: "Общестроительные работы"})
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.addWorkers(reportId, []int64{workerIds[0]})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.Applied, []int64{workerIds[0]}) {
		t.Fatalf("unexpected worker result %v", res)
	}

	// a second submission extends the set, duplicates are not re-added
	res, err = admin.addWorkers(reportId, []int64{workerIds[0], workerIds[1], 9999})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.Applied, []int64{workerIds[0], workerIds[1]}) || !slices.Equal(res.Skipped, []int64{9999}) {
		t.Fatalf("unexpected worker result %v", res)
	}

	info, err := admin.reportInfo(reportId)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Workers) != 2 {
		t.Fatalf("workers should accumulate across submissions %v", info.Workers)
	}
}

func TestEquipmentReplacement(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	objectId, _, _, equipmentIds := setupRoster(t, admin)

	reportId, err := admin.createReport(reportArgs{ObjectId: objectId, Shift: "morning", WorkCategory: "Общестроительные работы"})
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.setEquipment(reportId, []equipmentEntry{
		{EquipmentId: equipmentIds[0], Quantity: 3},
		{EquipmentId: equipmentIds[1]}, // no quantity given, defaults to 1
		{EquipmentId: 9999, Quantity: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.Applied, []int64{equipmentIds[0], equipmentIds[1]}) || !slices.Equal(res.Skipped, []int64{9999}) {
		t.Fatalf("unexpected equipment result %v", res)
	}

	info, err := admin.reportInfo(reportId)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Equipment) != 2 {
		t.Fatalf("unexpected equipment %v", info.Equipment)
	}
	quantities := map[int64]int{}
	for _, e := range info.Equipment {
		quantities[e.Id] = e.Quantity
	}
	if quantities[equipmentIds[0]] != 3 || quantities[equipmentIds[1]] != 1 {
		t.Fatalf("unexpected quantities %v", quantities)
	}

	res, err = admin.setEquipment(reportId, []equipmentEntry{{EquipmentId: equipmentIds[1], Quantity: 2}})
	if err != nil {
		t.Fatal(err)
	}

	info, err = admin.reportInfo(reportId)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Equipment) != 1 || info.Equipment[0].Id != equipmentIds[1] || info.Equipment[0].Quantity != 2 {
		t.Fatalf("equipment should be replaced by the last submission %v", info.Equipment)
	}
}

func TestPhotoUpload(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	objectId, err := admin.createObject("site")
	if err != nil {
		t.Fatal(err)
	}

	reportId, err := admin.createReport(reportArgs{ObjectId: objectId, Shift: "morning", WorkCategory: "Общестроительные работы"})
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.addPhotos(reportId, "foundation pour", map[string][]byte{
		"a.jpg": []byte("photo a"),
		"b.jpg": []byte("photo b"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.PhotoIds) != 2 || len(res.Failed) != 0 {
		t.Fatalf("unexpected upload result %v", res)
	}

	// uploads are additive
	res, err = admin.addPhotos(reportId, "", map[string][]byte{"c.jpg": []byte("photo c")})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.PhotoIds) != 1 {
		t.Fatalf("unexpected upload result %v", res)
	}

	info, err := admin.reportInfo(reportId)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Photos) != 3 {
		t.Fatalf("unexpected photos %v", info.Photos)
	}

	for _, photo := range info.Photos {
		exists, err := env.storage.Exists(photo.FilePath)
		if err != nil {
			t.Fatal(err)
		}
		if !exists {
			t.Fatalf("photo file %v missing from storage", photo.FilePath)
		}
	}
}

func TestSendReport(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	objectId, itrIds, _, _ := setupRoster(t, admin)

	reportId, err := admin.createReport(reportArgs{ObjectId: objectId, Shift: "morning", WorkCategory: "Общестроительные работы"})
	if err != nil {
		t.Fatal(err)
	}

	if err := admin.sendReport(reportId, 9999); err == nil {
		t.Fatal("send should fail with unknown recipient")
	}

	// failed send must leave the draft editable
	if _, err := admin.setCrew(reportId, itrIds[:1]); err != nil {
		t.Fatal(err)
	}

	if err := admin.setComments(reportId, "concrete delivered late"); err != nil {
		t.Fatal(err)
	}

	if err := admin.sendReport(reportId, admin.userId); err != nil {
		t.Fatal(err)
	}

	info, err := admin.reportInfo(reportId)
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != "sent" || info.SentAt == nil || info.RecipientId == nil || *info.RecipientId != admin.userId {
		t.Fatalf("invalid sent report info %v", info)
	}

	// a sent report is frozen
	if _, err := admin.setCrew(reportId, itrIds); err == nil {
		t.Fatal("crew update should fail on sent report")
	}
	if err := admin.setComments(reportId, "edit"); err == nil {
		t.Fatal("comment update should fail on sent report")
	}
	if err := admin.sendReport(reportId, admin.userId); err == nil {
		t.Fatal("resend should fail on sent report")
	}
	if _, err := admin.addPhotos(reportId, "", map[string][]byte{"late.jpg": []byte("x")}); err == nil {
		t.Fatal("photo upload should fail on sent report")
	}
}
