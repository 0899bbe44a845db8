package tests

import (
	"errors"
	"testing"
)

func onboardClient(t *testing.T, env *testEnv, admin client, telegramId int64) (client, newClientResult) {
	created, err := admin.createClient("Orlov O.O.", "StroyInvest", "")
	if err != nil {
		t.Fatal(err)
	}

	c := env.newClient()
	if err := c.redeemAccessCode(created.AccessCode, telegramId, "orlov"); err != nil {
		t.Fatal(err)
	}
	return c, created
}

func TestAuthRequired(t *testing.T) {
	env := setupTestEnv(t)

	anon := env.newClient()

	if _, err := anon.listObjects(); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if _, err := anon.listReports(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if _, err := anon.userInfo(); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}

	bad := env.newClient()
	if err := bad.login(loginInfo{Username: adminUsername, Password: "wrong"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestClientRoleRestrictions(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	c, _ := onboardClient(t, env, admin, 771234)

	if _, err := c.createObject("site"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("client should not be able to create objects, got %v", err)
	}
	if _, err := c.createReport(reportArgs{ObjectId: 1, Shift: "morning", WorkCategory: "Общестроительные работы"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("client should not be able to create reports, got %v", err)
	}
	if _, err := c.createClient("X", "Y", ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("client should not be able to create clients, got %v", err)
	}
	if _, err := c.createItr("X"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("client should not be able to edit the roster, got %v", err)
	}
}

func TestClientObjectVisibility(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	mine, err := admin.createObject("my site")
	if err != nil {
		t.Fatal(err)
	}
	other, err := admin.createObject("other site")
	if err != nil {
		t.Fatal(err)
	}

	c, created := onboardClient(t, env, admin, 771234)
	if err := admin.assignObject(created.ClientId, mine); err != nil {
		t.Fatal(err)
	}

	myReport, err := admin.createReport(reportArgs{ObjectId: mine, Shift: "morning", WorkCategory: "Общестроительные работы"})
	if err != nil {
		t.Fatal(err)
	}
	otherReport, err := admin.createReport(reportArgs{ObjectId: other, Shift: "morning", WorkCategory: "Общестроительные работы"})
	if err != nil {
		t.Fatal(err)
	}

	objects, err := c.listObjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 1 || objects[0].Id != mine {
		t.Fatalf("client should only see assigned objects %v", objects)
	}

	reports, err := c.listReports("")
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].Id != myReport {
		t.Fatalf("client should only see reports for assigned objects %v", reports)
	}

	if _, err := c.reportInfo(myReport); err != nil {
		t.Fatal(err)
	}
	if _, err := c.reportInfo(otherReport); !errors.Is(err, ErrForbidden) {
		t.Fatalf("client should not see reports for unassigned objects, got %v", err)
	}
	if _, _, err := c.exportReport(otherReport); err == nil {
		t.Fatal("client should not export reports for unassigned objects")
	}

	// admins see everything
	all, err := admin.listReports("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("admin should see all reports %v", all)
	}
}
