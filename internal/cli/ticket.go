package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fixdesk/fixdesk/internal/common"
	"github.com/fixdesk/fixdesk/internal/db"
	apperrors "github.com/fixdesk/fixdesk/internal/errors"
	"github.com/fixdesk/fixdesk/internal/models"
)

// ticket create flags
var (
	createName        string
	createEmail       string
	createPhone       string
	createDevice      string
	createBrand       string
	createModel       string
	createSerial      string
	createAccessories string
	createDescription string
	createAttach      []string
)

// ticket status flags
var statusNote string

func init() {
	ticketCreateCmd.Flags().StringVar(&createName, "name", "", "Customer full name (required)")
	ticketCreateCmd.Flags().StringVar(&createEmail, "email", "", "Customer email (required)")
	ticketCreateCmd.Flags().StringVar(&createPhone, "phone", "", "Customer phone")
	ticketCreateCmd.Flags().StringVar(&createDevice, "device", "", "Device type (laptop, phone...)")
	ticketCreateCmd.Flags().StringVar(&createBrand, "brand", "", "Device brand")
	ticketCreateCmd.Flags().StringVar(&createModel, "model", "", "Device model")
	ticketCreateCmd.Flags().StringVar(&createSerial, "serial", "", "Device serial number")
	ticketCreateCmd.Flags().StringVar(&createAccessories, "accessories", "", "Accessories left with the device")
	ticketCreateCmd.Flags().StringVar(&createDescription, "description", "", "Problem description (required)")
	ticketCreateCmd.Flags().StringArrayVar(&createAttach, "attach", nil, "Attachment file path (repeatable)")
	ticketCreateCmd.MarkFlagRequired("name")
	ticketCreateCmd.MarkFlagRequired("email")
	ticketCreateCmd.MarkFlagRequired("description")

	ticketStatusCmd.Flags().StringVar(&statusNote, "note", "", "Note included in the customer notification")

	ticketCmd.AddCommand(ticketCreateCmd)
	ticketCmd.AddCommand(ticketListCmd)
	ticketCmd.AddCommand(ticketShowCmd)
	ticketCmd.AddCommand(ticketStatusCmd)
	ticketCmd.AddCommand(ticketReclassifyCmd)
	ticketCmd.AddCommand(ticketFindCmd)
	rootCmd.AddCommand(ticketCmd)
}

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Manage repair tickets",
}

// ticket create

var ticketCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Check a device in and create a ticket",
	Long: `Create a repair ticket from the command line.

The description is classified into issue labels, and a claim code is
printed for the customer's receipt.

Examples:
  fixdesk ticket create --name "Ada Lovelace" --email ada@example.com \
    --device laptop --description "screen is cracked"
  fixdesk ticket create --name "Ada Lovelace" --email ada@example.com \
    --description "won't turn on" --attach photo.jpg --attach receipt.pdf`,
	Args: cobra.NoArgs,
	RunE: runTicketCreate,
}

func runTicketCreate(cmd *cobra.Command, args []string) error {
	database, _, svc, err := openServices()
	if err != nil {
		return err
	}
	defer database.Close()

	var attachments []db.AttachmentInput
	for _, path := range createAttach {
		attachments = append(attachments, db.FilePath{Path: path})
	}

	ticket, err := svc.CreateTicket(db.CreateTicket{
		Name:        createName,
		Email:       createEmail,
		Phone:       createPhone,
		DeviceType:  createDevice,
		Brand:       createBrand,
		Model:       createModel,
		Serial:      createSerial,
		Accessories: createAccessories,
		Description: createDescription,
		Attachments: attachments,
		Actor:       "front desk",
	})
	if err != nil {
		return err
	}

	if IsJSON() {
		return printTicketJSON(ticket)
	}

	OutputLine("Created ticket %s", ticket.ID)
	OutputLine("Claim code: %s", ticket.ClaimCode)
	if len(ticket.Labels) > 0 {
		OutputLine("Detected issues: %s", labelNames(ticket.Labels))
	}
	return nil
}

// ticket list

var ticketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets, newest first",
	Args:  cobra.NoArgs,
	RunE:  runTicketList,
}

func runTicketList(cmd *cobra.Command, args []string) error {
	database, _, svc, err := openServices()
	if err != nil {
		return err
	}
	defer database.Close()

	tickets, err := svc.ListTickets()
	if err != nil {
		return err
	}

	if len(tickets) == 0 {
		if IsJSON() {
			fmt.Println("[]")
			return nil
		}
		OutputLine("No tickets found.")
		return nil
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(tickets, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%-8s %-20s %-18s %-16s %-8s %s\n", "CLAIM", "CUSTOMER", "DEVICE", "STATUS", "AGE", "ISSUES")
	fmt.Println(strings.Repeat("-", 90))
	for _, t := range tickets {
		device := strings.TrimSpace(fmt.Sprintf("%s %s", t.DeviceType, t.Brand))
		fmt.Printf("%-8s %-20s %-18s %-16s %-8s %s\n",
			t.ClaimCode,
			truncate(t.Name, 20),
			truncate(device, 18),
			t.Status,
			common.FormatAge(t.CreatedAt),
			labelNames(t.Labels),
		)
	}
	return nil
}

// ticket show

var ticketShowCmd = &cobra.Command{
	Use:   "show <ID|CLAIM>",
	Short: "Show ticket details",
	Long: `Display a ticket by id or claim code, including labels, attachments,
and the full status history.`,
	Args: cobra.ExactArgs(1),
	RunE: runTicketShow,
}

func runTicketShow(cmd *cobra.Command, args []string) error {
	database, _, svc, err := openServices()
	if err != nil {
		return err
	}
	defer database.Close()

	ticket, err := resolveTicket(svc, args[0])
	if err != nil {
		return err
	}

	if IsJSON() {
		return printTicketJSON(ticket)
	}

	OutputLine("Ticket:      %s", ticket.ID)
	OutputLine("Claim code:  %s", ticket.ClaimCode)
	OutputLine("Customer:    %s <%s>", ticket.Name, ticket.Email)
	if ticket.Phone != "" {
		OutputLine("Phone:       %s", ticket.Phone)
	}
	device := strings.TrimSpace(fmt.Sprintf("%s %s %s", ticket.DeviceType, ticket.Brand, ticket.Model))
	if device != "" {
		OutputLine("Device:      %s", device)
	}
	if ticket.Serial != "" {
		OutputLine("Serial:      %s", ticket.Serial)
	}
	if ticket.Accessories != "" {
		OutputLine("Accessories: %s", ticket.Accessories)
	}
	OutputLine("Status:      %s", ticket.Status)
	OutputLine("Created:     %s (%s)", ticket.CreatedAt.Local().Format("2006-01-02 15:04"), common.FormatAge(ticket.CreatedAt))
	OutputLine("")
	OutputLine("Problem: %s", ticket.Description)

	if len(ticket.Labels) > 0 {
		OutputLine("")
		OutputLine("Detected issues:")
		for _, l := range ticket.Labels {
			OutputLine("  %-20s %.2f", l.Name, l.Score)
		}
	}
	if len(ticket.Attachments) > 0 {
		OutputLine("")
		OutputLine("Attachments:")
		for _, a := range ticket.Attachments {
			OutputLine("  %s (%s)", a.Filename, a.Path)
		}
	}

	OutputLine("")
	OutputLine("History:")
	for _, h := range ticket.StatusHistory {
		line := fmt.Sprintf("  %s  %-16s %s", h.At.Local().Format("2006-01-02 15:04"), h.Status, h.Actor)
		if h.Note != "" {
			line += "  (" + h.Note + ")"
		}
		OutputLine("%s", line)
	}
	return nil
}

// ticket status

var ticketStatusCmd = &cobra.Command{
	Use:   "status <ID|CLAIM> <STATUS>",
	Short: "Update a ticket's status and notify the customer",
	Long: fmt.Sprintf(`Move a ticket to a new status. The change is appended to the ticket's
history and the customer is emailed when SMTP is configured.

Valid statuses: %s

Examples:
  fixdesk ticket status K7Q2M9X diagnosing --note "no POST, testing PSU"
  fixdesk ticket status K7Q2M9X "ready for pickup"`, statusList()),
	Args: cobra.ExactArgs(2),
	RunE: runTicketStatus,
}

func runTicketStatus(cmd *cobra.Command, args []string) error {
	database, _, svc, err := openServices()
	if err != nil {
		return err
	}
	defer database.Close()

	ticket, err := resolveTicket(svc, args[0])
	if err != nil {
		return err
	}

	status := models.Status(strings.ToLower(strings.TrimSpace(args[1])))
	updated, res, err := svc.UpdateTicketStatus(ticket.ID, status, statusNote, "technician")
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"ticket":       updated,
			"notified":     res.OK,
			"notification": res.Message,
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	OutputLine("Ticket %s is now %q", updated.ClaimCode, updated.Status)
	if res.OK {
		OutputLine("Notification: %s", res.Message)
	} else {
		ErrorOutput("Warning: customer not notified: %s\n", res.Message)
	}
	return nil
}

// ticket reclassify

var ticketReclassifyCmd = &cobra.Command{
	Use:   "reclassify <ID|CLAIM>",
	Short: "Re-run issue classification on a ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketReclassify,
}

func runTicketReclassify(cmd *cobra.Command, args []string) error {
	database, _, svc, err := openServices()
	if err != nil {
		return err
	}
	defer database.Close()

	ticket, err := resolveTicket(svc, args[0])
	if err != nil {
		return err
	}

	updated, err := svc.ReclassifyTicket(ticket.ID)
	if err != nil {
		return err
	}

	if IsJSON() {
		return printTicketJSON(updated)
	}
	OutputLine("Ticket %s reclassified: %s", updated.ClaimCode, labelNames(updated.Labels))
	return nil
}

// ticket find

var ticketFindCmd = &cobra.Command{
	Use:   "find <CLAIM>",
	Short: "Find a ticket by claim code",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketFind,
}

func runTicketFind(cmd *cobra.Command, args []string) error {
	database, _, svc, err := openServices()
	if err != nil {
		return err
	}
	defer database.Close()

	ticket, err := svc.FindTicketByClaim(args[0])
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NotFound("no ticket with claim code %q", args[0])
	}

	if IsJSON() {
		return printTicketJSON(ticket)
	}
	OutputLine("%s  %s  %s  %s", ticket.ClaimCode, ticket.ID, ticket.Status, ticket.Name)
	return nil
}

// helpers

// resolveTicket accepts an id or a claim code.
func resolveTicket(svc ticketLoader, ref string) (*models.Ticket, error) {
	ticket, err := svc.LoadTicket(ref)
	if err == nil {
		return ticket, nil
	}
	if !apperrors.Is(err, apperrors.KindNotFound) {
		return nil, err
	}

	ticket, ferr := svc.FindTicketByClaim(ref)
	if ferr != nil {
		return nil, ferr
	}
	if ticket == nil {
		return nil, apperrors.NotFound("no ticket with id or claim code %q", ref)
	}
	return ticket, nil
}

// ticketLoader is the slice of the service resolveTicket needs.
type ticketLoader interface {
	LoadTicket(id string) (*models.Ticket, error)
	FindTicketByClaim(code string) (*models.Ticket, error)
}

func printTicketJSON(t *models.Ticket) error {
	data, err := t.EncodeJSON()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func labelNames(labels []models.Label) string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return strings.Join(names, ", ")
}

func statusList() string {
	statuses := models.AllStatuses()
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
