package main

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	capsulesCmd := &cobra.Command{Use: "capsules", Short: "Capsule operations"}

	// submit
	var (
		creatorId, creatorName, recipient string
		text, fromWhom, toWhom            string
		openDate                          string
		imageFile, audioFile, videoFile   string
		lat, lon                          float64
		radius                            int
		anonymous, locationLocked, shared bool
		capsuleId                         string
		emotionTags                       []string
	)
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Seal and deliver a capsule",
		RunE: func(cmd *cobra.Command, args []string) error {
			open, err := time.Parse(time.RFC3339, openDate)
			if err != nil {
				return fmt.Errorf("invalid --open, want RFC3339: %w", err)
			}
			payload := map[string]interface{}{
				"creatorId":        creatorId,
				"creatorName":      creatorName,
				"recipient":        recipient,
				"text":             text,
				"fromWhom":         fromWhom,
				"toWhom":           toWhom,
				"openDate":         open,
				"isAnonymous":      anonymous,
				"isLocationLocked": locationLocked,
				"isShared":         shared,
			}
			if capsuleId != "" {
				payload["capsuleId"] = capsuleId
			}
			if len(emotionTags) > 0 {
				payload["emotionTagLabels"] = emotionTags
			}
			if locationLocked {
				payload["location"] = map[string]interface{}{
					"latitude":  lat,
					"longitude": lon,
					"radius":    radius,
				}
			}
			for _, m := range []struct{ file, key string }{
				{imageFile, "imageData"},
				{audioFile, "audioData"},
				{videoFile, "videoData"},
			} {
				if m.file == "" {
					continue
				}
				raw, err := os.ReadFile(m.file)
				if err != nil {
					return err
				}
				payload[m.key] = base64.StdEncoding.EncodeToString(raw)
			}
			data, err := doPostJSON("/api/capsules/submit", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	submitCmd.Flags().StringVar(&capsuleId, "capsuleId", "", "Existing shared capsule ID")
	submitCmd.Flags().StringVarP(&creatorId, "creator", "c", "", "Creator user ID (required)")
	submitCmd.Flags().StringVar(&creatorName, "creatorName", "", "Creator display name")
	submitCmd.Flags().StringVarP(&recipient, "recipient", "r", "", "Recipient user ID (required)")
	submitCmd.Flags().StringVarP(&text, "text", "m", "", "Message text (required)")
	submitCmd.Flags().StringVar(&fromWhom, "from", "", "Sender label")
	submitCmd.Flags().StringVar(&toWhom, "to", "", "Recipient label")
	submitCmd.Flags().StringVarP(&openDate, "open", "o", "", "Open date, RFC3339 (required)")
	submitCmd.Flags().StringVar(&imageFile, "image", "", "Image file to attach")
	submitCmd.Flags().StringVar(&audioFile, "audio", "", "Audio file to attach")
	submitCmd.Flags().StringVar(&videoFile, "video", "", "Video file to attach")
	submitCmd.Flags().Float64Var(&lat, "lat", 0, "Geofence latitude")
	submitCmd.Flags().Float64Var(&lon, "lon", 0, "Geofence longitude")
	submitCmd.Flags().IntVar(&radius, "radius", 100, "Geofence radius in km")
	submitCmd.Flags().BoolVar(&anonymous, "anonymous", false, "Hide the sender")
	submitCmd.Flags().BoolVar(&locationLocked, "location-locked", false, "Require presence inside the geofence to open")
	submitCmd.Flags().BoolVar(&shared, "shared", false, "Mark as a shared capsule")
	submitCmd.Flags().StringSliceVar(&emotionTags, "emotion", nil, "Emotion tag labels")
	_ = submitCmd.MarkFlagRequired("creator")
	_ = submitCmd.MarkFlagRequired("recipient")
	_ = submitCmd.MarkFlagRequired("open")
	capsulesCmd.AddCommand(submitCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get CAPSULE_ID",
		Short: "Get capsule by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/api/capsules/%s", args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	capsulesCmd.AddCommand(getCmd)

	// open
	openCmd := &cobra.Command{
		Use:   "open CAPSULE_ID USER_ID [LAT LON]",
		Short: "Open a capsule as a recipient",
		Args:  cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"userId": args[1]}
			if len(args) == 4 {
				la, err := strconv.ParseFloat(args[2], 64)
				if err != nil {
					return fmt.Errorf("invalid latitude: %w", err)
				}
				lo, err := strconv.ParseFloat(args[3], 64)
				if err != nil {
					return fmt.Errorf("invalid longitude: %w", err)
				}
				payload["latitude"] = la
				payload["longitude"] = lo
			}
			data, err := doPostJSON(fmt.Sprintf("/api/capsules/%s/open", args[0]), payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	capsulesCmd.AddCommand(openCmd)

	// reply
	var replyText string
	replyCmd := &cobra.Command{
		Use:   "reply CAPSULE_ID USER_ID",
		Short: "Append a reply to a capsule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{"userId": args[1], "text": replyText}
			data, err := doPostJSON(fmt.Sprintf("/api/capsules/%s/replies", args[0]), payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	replyCmd.Flags().StringVarP(&replyText, "text", "m", "", "Reply text (required)")
	_ = replyCmd.MarkFlagRequired("text")
	capsulesCmd.AddCommand(replyCmd)

	// delete
	deleteCmd := &cobra.Command{
		Use:   "delete CAPSULE_ID",
		Short: "Delete a capsule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := doDelete(fmt.Sprintf("/api/capsules/%s", args[0])); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "deleted")
			return nil
		},
	}
	capsulesCmd.AddCommand(deleteCmd)

	// list / pending / opened
	listCmd := &cobra.Command{
		Use:   "list USER_ID",
		Short: "List capsules addressed to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/api/users/%s/capsules", args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	capsulesCmd.AddCommand(listCmd)

	pendingCmd := &cobra.Command{
		Use:   "pending USER_ID",
		Short: "List a user's pending capsules, soonest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/api/users/%s/capsules/pending", args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	capsulesCmd.AddCommand(pendingCmd)

	openedCmd := &cobra.Command{
		Use:   "opened USER_ID",
		Short: "List a user's opened capsules grouped by age",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/api/users/%s/capsules/opened", args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	capsulesCmd.AddCommand(openedCmd)

	// search
	searchCmd := &cobra.Command{
		Use:   "search USER_ID QUERY",
		Short: "Search a user's opened capsules",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/api/users/%s/capsules/search?q=%s", args[0], url.QueryEscape(args[1])))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	capsulesCmd.AddCommand(searchCmd)

	rootCmd.AddCommand(capsulesCmd)
}
