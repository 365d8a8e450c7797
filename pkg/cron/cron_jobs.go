package cron

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"splitpocket/pkg/utils"
)

// StartCronJob schedules the daily debtor reminder run at midnight UTC.
func StartCronJob(db *sql.DB) *cron.Cron {
	c := cron.New()

	_, err := c.AddFunc("0 0 * * *", func() {
		SendReminderEmailsToDebtors(db)
	})
	if err != nil {
		utils.Logger.Errorf("failed to schedule debtor reminder job: %v", err)
		return c
	}

	c.Start()
	utils.Logger.Info("Cron scheduler started")
	return c
}

type debtorReminder struct {
	email       string
	userName    string
	amountCents int64
	currency    string
	groupName   string
	oldestDebt  string
}

// SendReminderEmailsToDebtors emails every debtor with an address on file a
// summary of their outstanding amount per group.
func SendReminderEmailsToDebtors(db *sql.DB) {
	if !utils.EmailConfigured() {
		utils.Logger.Info("Email not configured, skipping debtor reminders")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx,
		`SELECT u.email, gm.user_name, SUM(s.amount_owed_cents), g.currency, g.name, MIN(s.created_at)
		 FROM splits s
		 INNER JOIN users u ON u.id = s.from_user_id AND u.email IS NOT NULL
		 INNER JOIN groups g ON g.id = s.group_id
		 INNER JOIN group_members gm ON gm.group_id = s.group_id AND gm.user_id = s.from_user_id
		 WHERE s.is_settled = FALSE AND s.from_user_id != s.to_user_id
		 GROUP BY s.from_user_id, s.group_id, u.email, gm.user_name, g.currency, g.name`)
	if err != nil {
		utils.Logger.Errorf("failed to query debtors: %v", err)
		return
	}
	defer rows.Close()

	reminders := []debtorReminder{}
	for rows.Next() {
		var d debtorReminder
		if err := rows.Scan(&d.email, &d.userName, &d.amountCents, &d.currency, &d.groupName, &d.oldestDebt); err != nil {
			utils.Logger.Errorf("failed to scan debtor row: %v", err)
			return
		}
		reminders = append(reminders, d)
	}
	if err := rows.Err(); err != nil {
		utils.Logger.Errorf("failed to iterate debtors: %v", err)
		return
	}
	if len(reminders) == 0 {
		return
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(reminders))

	for _, d := range reminders {
		wg.Add(1)
		go func(d debtorReminder) {
			defer wg.Done()
			oldest, err := time.Parse(time.RFC3339, d.oldestDebt)
			if err != nil {
				oldest = time.Now().UTC()
			}
			amount := utils.FromCents(d.amountCents).StringFixed(2)
			if err := utils.SendDebtorReminderEmail(d.email, d.userName, amount, d.currency, d.groupName, oldest); err != nil {
				errChan <- err
			}
		}(d)
	}

	wg.Wait()
	close(errChan)

	failed := 0
	for err := range errChan {
		failed++
		utils.Logger.Warnf("failed to send debtor reminder: %v", err)
	}
	utils.Logger.Infof("Debtor reminders sent: %d, failed: %d", len(reminders)-failed, failed)
}
