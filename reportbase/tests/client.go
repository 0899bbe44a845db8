package tests

import (
	"bytes"
	"construction_reports/reportbase/services"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(username, password string) *httpTestRequest {
	r.login = &loginInfo{Username: username, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(body io.Reader) *httpTestRequest {
	r.body = body
	return r
}

func (r *httpTestRequest) do() (*httptest.ResponseRecorder, error) {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return nil, fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	if r.login != nil {
		req.SetBasicAuth(r.login.Username, r.login.Password)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	return w, nil
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	w, err := r.do()
	if err != nil {
		return err
	}

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		if res.StatusCode == http.StatusForbidden {
			return ErrForbidden
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

// DoRaw returns the raw response body, for endpoints that don't return json.
func (r *httpTestRequest) DoRaw() ([]byte, string, error) {
	w, err := r.do()
	if err != nil {
		return nil, "", err
	}

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	return w.Body.Bytes(), res.Header.Get("Content-Type"), nil
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

type client struct {
	api       chi.Router
	authToken string
	userId    int64
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

type loginInfo struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResult struct {
	UserId      int64  `json:"user_id"`
	AccessToken string `json:"access_token"`
}

func (c *client) login(login loginInfo) error {
	var res loginResult
	err := c.Get("/user/login").Login(login.Username, login.Password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res.AccessToken
	c.userId = res.UserId

	return nil
}

func (c *client) redeemAccessCode(code string, telegramId int64, username string) error {
	body := map[string]interface{}{
		"access_code": code, "telegram_id": telegramId, "username": username,
	}

	var res loginResult
	err := c.Post("/user/redeem").Json(body).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res.AccessToken
	c.userId = res.UserId

	return nil
}

func (c *client) telegramLogin(telegramId int64) error {
	var res loginResult
	err := c.Post("/user/telegram-login").Json(map[string]int64{"telegram_id": telegramId}).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res.AccessToken
	c.userId = res.UserId

	return nil
}

func (c *client) userInfo() (services.UserInfo, error) {
	var res services.UserInfo
	err := c.Get("/user/info").Do(&res)
	return res, err
}

type newClientResult struct {
	ClientId   int64  `json:"client_id"`
	UserId     int64  `json:"user_id"`
	AccessCode string `json:"access_code"`
}

func (c *client) createClient(fullName, organization, contactInfo string) (newClientResult, error) {
	body := map[string]string{
		"full_name": fullName, "organization": organization, "contact_info": contactInfo,
	}

	var res newClientResult
	err := c.Post("/client/create").Json(body).Do(&res)
	return res, err
}

func (c *client) clientInfo(clientId int64) (services.ClientInfo, error) {
	var res services.ClientInfo
	err := c.Get(fmt.Sprintf("/client/%v", clientId)).Do(&res)
	return res, err
}

func (c *client) assignObject(clientId, objectId int64) error {
	return c.Post(fmt.Sprintf("/client/%v/objects/%v", clientId, objectId)).Do(nil)
}

func (c *client) unassignObject(clientId, objectId int64) (bool, error) {
	var res map[string]bool
	err := c.Delete(fmt.Sprintf("/client/%v/objects/%v", clientId, objectId)).Do(&res)
	return res["deleted"], err
}

func (c *client) deleteClient(clientId int64) (bool, error) {
	var res map[string]bool
	err := c.Delete(fmt.Sprintf("/client/%v", clientId)).Do(&res)
	return res["deleted"], err
}

func (c *client) createObject(name string) (int64, error) {
	var res map[string]int64
	err := c.Post("/object/create").Json(map[string]string{"name": name}).Do(&res)
	return res["object_id"], err
}

func (c *client) listObjects() ([]services.ObjectInfo, error) {
	var res []services.ObjectInfo
	err := c.Get("/object/list").Do(&res)
	return res, err
}

func (c *client) deleteObject(objectId int64) (bool, error) {
	var res map[string]bool
	err := c.Delete(fmt.Sprintf("/object/%v", objectId)).Do(&res)
	return res["deleted"], err
}

func (c *client) createItr(fullName string) (int64, error) {
	var res map[string]int64
	err := c.Post("/itr/create").Json(map[string]string{"full_name": fullName}).Do(&res)
	return res["id"], err
}

func (c *client) createWorker(fullName, position string) (int64, error) {
	var res map[string]int64
	err := c.Post("/worker/create").Json(map[string]string{"full_name": fullName, "position": position}).Do(&res)
	return res["id"], err
}

func (c *client) createEquipment(name string) (int64, error) {
	var res map[string]int64
	err := c.Post("/equipment/create").Json(map[string]string{"name": name}).Do(&res)
	return res["id"], err
}

func (c *client) deleteItr(itrId int64) (bool, error) {
	var res map[string]bool
	err := c.Delete(fmt.Sprintf("/itr/%v", itrId)).Do(&res)
	return res["deleted"], err
}

type reportArgs struct {
	ObjectId     int64   `json:"object_id"`
	Shift        string  `json:"shift"`
	WorkCategory string  `json:"work_category"`
	WorkSubtype  *string `json:"work_subtype,omitempty"`
	Comments     *string `json:"comments,omitempty"`
}

func (c *client) createReport(args reportArgs) (int64, error) {
	var res map[string]int64
	err := c.Post("/report/create").Json(args).Do(&res)
	return res["report_id"], err
}

type setResult struct {
	Applied []int64 `json:"applied"`
	Skipped []int64 `json:"skipped"`
}

func (c *client) setCrew(reportId int64, itrIds []int64) (setResult, error) {
	var res setResult
	err := c.Post(fmt.Sprintf("/report/%v/itr", reportId)).Json(map[string][]int64{"itr_ids": itrIds}).Do(&res)
	return res, err
}

func (c *client) addWorkers(reportId int64, workerIds []int64) (setResult, error) {
	var res setResult
	err := c.Post(fmt.Sprintf("/report/%v/workers", reportId)).Json(map[string][]int64{"worker_ids": workerIds}).Do(&res)
	return res, err
}

type equipmentEntry struct {
	EquipmentId int64 `json:"equipment_id"`
	Quantity    int   `json:"quantity"`
}

func (c *client) setEquipment(reportId int64, entries []equipmentEntry) (setResult, error) {
	var res setResult
	err := c.Post(fmt.Sprintf("/report/%v/equipment", reportId)).Json(map[string][]equipmentEntry{"equipment": entries}).Do(&res)
	return res, err
}

type photoUploadResult struct {
	PhotoIds []int64  `json:"photo_ids"`
	Failed   []string `json:"failed"`
}

func (c *client) addPhotos(reportId int64, description string, files map[string][]byte) (photoUploadResult, error) {
	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)

	if description != "" {
		if err := form.WriteField("description", description); err != nil {
			return photoUploadResult{}, err
		}
	}
	for filename, content := range files {
		part, err := form.CreateFormFile("photos", filename)
		if err != nil {
			return photoUploadResult{}, err
		}
		if _, err := part.Write(content); err != nil {
			return photoUploadResult{}, err
		}
	}
	if err := form.Close(); err != nil {
		return photoUploadResult{}, err
	}

	var res photoUploadResult
	err := c.Post(fmt.Sprintf("/report/%v/photos", reportId)).
		Header("Content-Type", form.FormDataContentType()).
		Body(body).
		Do(&res)
	return res, err
}

func (c *client) setComments(reportId int64, comments string) error {
	return c.Post(fmt.Sprintf("/report/%v/comments", reportId)).Json(map[string]string{"comments": comments}).Do(nil)
}

func (c *client) sendReport(reportId, recipientId int64) error {
	return c.Post(fmt.Sprintf("/report/%v/send", reportId)).Json(map[string]int64{"recipient_id": recipientId}).Do(nil)
}

func (c *client) deleteReport(reportId int64) (bool, error) {
	var res map[string]bool
	err := c.Delete(fmt.Sprintf("/report/%v", reportId)).Do(&res)
	return res["deleted"], err
}

func (c *client) reportInfo(reportId int64) (services.ReportInfo, error) {
	var res services.ReportInfo
	err := c.Get(fmt.Sprintf("/report/%v", reportId)).Do(&res)
	return res, err
}

func (c *client) listReports(query string) ([]services.ReportInfo, error) {
	endpoint := "/report/list"
	if query != "" {
		endpoint += "?" + query
	}

	var res []services.ReportInfo
	err := c.Get(endpoint).Do(&res)
	return res, err
}

func (c *client) groupedReports(query string) ([]services.GroupedObject, error) {
	endpoint := "/report/grouped"
	if query != "" {
		endpoint += "?" + query
	}

	var res []services.GroupedObject
	err := c.Get(endpoint).Do(&res)
	return res, err
}

func (c *client) exportReport(reportId int64) ([]byte, string, error) {
	return c.Get(fmt.Sprintf("/report/%v/export", reportId)).DoRaw()
}
